package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/OhSeongHyeon/mocktalkfront/internal/store"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Check credentials against the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd, true)
		if err != nil {
			return err
		}
		defer rt.Close()
		if err := rt.login(cmd); err != nil {
			return err
		}
		expiry, _ := rt.client.Store.Expiry()
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s on %s (token %s).\n",
			rt.cur.LoginID, rt.cur.Server, untilTime(time.Now(), expiry))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the server session and signal other processes",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd, true)
		if err != nil {
			return err
		}
		defer rt.Close()
		if err := rt.login(cmd); err != nil {
			return err
		}
		logoutErr := rt.client.Logout(cmd.Context())
		rt.record(store.EventLogout, "", map[string]interface{}{"login_id": rt.cur.LoginID})
		if logoutErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: server logout failed: %v\n", logoutErr)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
		return nil
	},
}

type whoami struct {
	UserID      int64     `json:"userId"`
	LoginID     string    `json:"loginId"`
	DisplayName string    `json:"displayName"`
	Handle      string    `json:"handle"`
	Email       string    `json:"email"`
	Point       int64     `json:"point"`
	Role        string    `json:"role,omitempty"`
	Admin       bool      `json:"admin"`
	ImageURL    string    `json:"profileImageUrl,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd, false)
		if err != nil {
			return err
		}
		defer rt.Close()
		if err := rt.login(cmd); err != nil {
			return err
		}
		profile, err := rt.api().MyProfile(cmd.Context())
		if err != nil {
			return err
		}
		st := rt.client.Store
		expiry, _ := st.Expiry()
		view := whoami{
			UserID:      profile.UserID,
			LoginID:     profile.LoginID,
			DisplayName: st.Profile().DisplayName,
			Handle:      profile.Handle,
			Email:       profile.Email,
			Point:       profile.UserPoint,
			Role:        st.Role(),
			Admin:       st.IsAdmin(),
			ImageURL:    st.Profile().ProfileImageURL,
			ExpiresAt:   expiry,
		}
		if handled, err := writeOutput(cmd, view); handled {
			return err
		}
		tw := newTable(cmd.OutOrStdout())
		fmt.Fprintf(tw, "User:\t%s (@%s, id %d)\n", view.DisplayName, view.Handle, view.UserID)
		fmt.Fprintf(tw, "Login:\t%s\n", view.LoginID)
		fmt.Fprintf(tw, "Email:\t%s\n", view.Email)
		fmt.Fprintf(tw, "Points:\t%d\n", view.Point)
		if view.Role != "" {
			fmt.Fprintf(tw, "Role:\t%s\n", view.Role)
		}
		fmt.Fprintf(tw, "Token expires:\t%s\n", untilTime(time.Now(), view.ExpiresAt))
		flushTable(tw)
		return nil
	},
}
