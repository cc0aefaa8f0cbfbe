package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OhSeongHyeon/mocktalkfront/internal/forum"
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"noti"},
	Short:   "Read and manage notifications",
}

var notificationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		unread, _ := cmd.Flags().GetBool("unread")
		var read *bool
		if unread {
			no := false
			read = &no
		}
		rt, err := openRuntime(cmd, false)
		if err != nil {
			return err
		}
		defer rt.Close()
		if err := rt.login(cmd); err != nil {
			return err
		}
		page, err := rt.api().Notifications(cmd.Context(), pageNumber, pageSize, read)
		if err != nil {
			return err
		}
		if handled, err := writeOutput(cmd, page); handled {
			return err
		}
		if len(page.Items) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No notifications.")
			return nil
		}
		tw := newTable(cmd.OutOrStdout())
		fmt.Fprintf(tw, "ID\tREAD\tCREATED\tMESSAGE\n")
		for _, n := range page.Items {
			mark := "no"
			if n.Read {
				mark = "yes"
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", n.ID, mark, n.CreatedAt, truncate(forum.FormatNotification(n), 80))
		}
		flushTable(tw)
		return nil
	},
}

var notificationsReadCmd = &cobra.Command{
	Use:   "read <id>",
	Short: "Mark one notification as read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		notificationID, err := parseID(args[0])
		if err != nil {
			return err
		}
		rt, err := openRuntime(cmd, false)
		if err != nil {
			return err
		}
		defer rt.Close()
		if err := rt.login(cmd); err != nil {
			return err
		}
		n, err := rt.api().MarkNotificationRead(cmd.Context(), notificationID)
		if err != nil {
			return err
		}
		if handled, err := writeOutput(cmd, n); handled {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Notification %d marked as read.\n", n.ID)
		return nil
	},
}

var notificationsReadAllCmd = &cobra.Command{
	Use:   "read-all",
	Short: "Mark every notification as read",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd, false)
		if err != nil {
			return err
		}
		defer rt.Close()
		if err := rt.login(cmd); err != nil {
			return err
		}
		if err := rt.api().MarkAllNotificationsRead(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "All notifications marked as read.")
		return nil
	},
}

var notificationsDeleteCmd = &cobra.Command{
	Use:   "delete <id|all>",
	Short: "Delete one notification or all of them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var notificationID int64
		if args[0] != "all" {
			var err error
			if notificationID, err = parseID(args[0]); err != nil {
				return err
			}
		}
		rt, err := openRuntime(cmd, false)
		if err != nil {
			return err
		}
		defer rt.Close()
		if err := rt.login(cmd); err != nil {
			return err
		}
		if notificationID == 0 {
			if err := rt.api().DeleteAllNotifications(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All notifications deleted.")
			return nil
		}
		if err := rt.api().DeleteNotification(cmd.Context(), notificationID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Notification %d deleted.\n", notificationID)
		return nil
	},
}

func init() {
	notificationsListCmd.Flags().Bool("unread", false, "Only unread notifications")
	notificationsListCmd.Flags().IntVar(&pageNumber, "page", 1, "Page number")
	notificationsListCmd.Flags().IntVar(&pageSize, "size", 20, "Page size")
	notificationsCmd.AddCommand(notificationsListCmd)
	notificationsCmd.AddCommand(notificationsReadCmd)
	notificationsCmd.AddCommand(notificationsReadAllCmd)
	notificationsCmd.AddCommand(notificationsDeleteCmd)
}
