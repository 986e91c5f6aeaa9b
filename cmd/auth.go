package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"bookmybox-cli/api"
	"bookmybox-cli/session"

	"github.com/spf13/cobra"
)

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage authentication",
	}

	cmd.AddCommand(authLoginCmd())
	cmd.AddCommand(authSignupCmd())
	cmd.AddCommand(authStatusCmd())
	cmd.AddCommand(authLogoutCmd())
	cmd.AddCommand(authProfileCmd())
	cmd.AddCommand(authPasswordCmd())
	return cmd
}

func authLoginCmd() *cobra.Command {
	var email string
	var password string
	var authFile string
	authFileDefault := os.Getenv("BOOKMYBOX_AUTH_FILE")

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login to BookMyBox",
		RunE: func(cmd *cobra.Command, args []string) error {
			if authFile != "" {
				fileEmail, filePassword, err := readAuthFile(authFile)
				if err != nil {
					return err
				}
				if email == "" {
					email = fileEmail
				}
				if password == "" {
					password = filePassword
				}
			}

			var err error
			if email == "" {
				if email, err = prompt("Email: "); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = promptSecret("Password: "); err != nil {
					return err
				}
			}
			if email == "" || password == "" {
				return fmt.Errorf("email and password are required")
			}

			user, err := app.Session.Login(context.Background(), email, password)
			if err != nil {
				return describeFailure(err)
			}
			if outputJSON {
				return writeJSON(user)
			}
			fmt.Printf("Logged in as %s (%s).\n", user.DisplayName(), user.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password")
	cmd.Flags().StringVar(&authFile, "auth-file", authFileDefault, "Load credentials from file (default: $BOOKMYBOX_AUTH_FILE)")
	return cmd
}

func authSignupCmd() *cobra.Command {
	var form api.Registration

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			form.Role = strings.ToLower(strings.TrimSpace(form.Role))
			if form.Role != api.RoleUser && form.Role != api.RoleOwner {
				return fmt.Errorf("--role must be %q or %q", api.RoleUser, api.RoleOwner)
			}
			if form.Role == api.RoleOwner && strings.TrimSpace(form.BusinessName) == "" {
				return fmt.Errorf("--business-name is required for facility owners")
			}

			var err error
			if form.Email == "" {
				if form.Email, err = prompt("Email: "); err != nil {
					return err
				}
			}
			if form.Password == "" {
				if form.Password, err = promptSecret("Password: "); err != nil {
					return err
				}
				if form.ConfirmPassword, err = promptSecret("Confirm password: "); err != nil {
					return err
				}
			}
			if form.ConfirmPassword == "" {
				form.ConfirmPassword = form.Password
			}
			if form.Password != form.ConfirmPassword {
				return fmt.Errorf("passwords do not match")
			}

			user, err := app.Session.Signup(context.Background(), form)
			if err != nil {
				return describeFailure(err)
			}
			if outputJSON {
				return writeJSON(user)
			}
			fmt.Printf("Welcome, %s. Signed up as %s.\n", user.DisplayName(), user.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&form.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&form.Password, "password", "", "Password")
	cmd.Flags().StringVar(&form.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&form.LastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&form.Phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&form.Role, "role", api.RoleUser, "Account type: user or owner")
	cmd.Flags().StringVar(&form.BusinessName, "business-name", "", "Business name (owners)")
	cmd.Flags().StringVar(&form.Location, "location", "", "Business location (owners)")
	return cmd
}

type authStatus struct {
	LoggedIn     bool      `json:"logged_in"`
	Confirmed    bool      `json:"confirmed"`
	User         *api.User `json:"user,omitempty"`
	TokenExpires string    `json:"token_expires,omitempty"`
	TokenExpired bool      `json:"token_expired"`
}

func authStatusCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check auth status",
		RunE: func(cmd *cobra.Command, args []string) error {
			state := app.Session.Snapshot()
			status := authStatus{LoggedIn: state.AccessToken != "" || state.RefreshToken != ""}
			if !status.LoggedIn {
				if outputJSON {
					return writeJSON(status)
				}
				fmt.Println("Not logged in.")
				return nil
			}

			status.User = app.Session.CachedUser()
			if exp, ok := session.TokenExpiry(state.AccessToken); ok {
				status.TokenExpires = exp.Format(time.RFC3339)
			}
			status.TokenExpired = session.TokenExpired(state.AccessToken, time.Now())

			if check {
				if user := app.Session.FetchCurrentUser(context.Background()); user != nil {
					status.User = user
					status.Confirmed = true
					status.TokenExpired = false
				} else if app.Session.AccessToken() == "" {
					status = authStatus{}
				}
			}

			if outputJSON {
				return writeJSON(status)
			}
			if !status.LoggedIn {
				fmt.Println("Session expired. Run 'bookmybox auth login' to re-authenticate.")
				return nil
			}
			name := "unknown user"
			if status.User != nil {
				name = fmt.Sprintf("%s (%s)", status.User.Email, status.User.Role)
			}
			switch {
			case status.Confirmed:
				fmt.Printf("Logged in as %s.\n", name)
			case status.TokenExpired:
				fmt.Printf("Access token expired for %s; it will be refreshed on the next request.\n", name)
			default:
				fmt.Printf("Logged in as %s (not verified, use --check).\n", name)
			}
			if status.TokenExpires != "" {
				fmt.Printf("Token expires: %s\n", status.TokenExpires)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Confirm the session with the server")
	return cmd
}

func authLogoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Logout and clear credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Session.Logout()
			fmt.Println("Logged out.")
			return nil
		},
	}

	return cmd
}

func authProfileCmd() *cobra.Command {
	var firstName, lastName, phone, businessName, location string

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or update your profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			user, err := app.requireUser(ctx)
			if err != nil {
				return err
			}

			fields := map[string]any{}
			set := func(flag, key, value string) {
				if cmd.Flags().Changed(flag) {
					fields[key] = strings.TrimSpace(value)
				}
			}
			set("first-name", "first_name", firstName)
			set("last-name", "last_name", lastName)
			set("phone", "phone", phone)
			set("business-name", "business_name", businessName)
			set("location", "location", location)

			if len(fields) > 0 {
				user, err = app.Session.UpdateProfile(ctx, fields)
				if err != nil {
					return describeFailure(err)
				}
			}

			if outputJSON {
				return writeJSON(user)
			}
			fmt.Printf("Name: %s\n", user.DisplayName())
			fmt.Printf("Email: %s\n", user.Email)
			fmt.Printf("Role: %s\n", user.Role)
			if user.Phone != "" {
				fmt.Printf("Phone: %s\n", user.Phone)
			}
			if user.BusinessName != "" {
				fmt.Printf("Business: %s\n", user.BusinessName)
			}
			if user.Location != "" {
				fmt.Printf("Location: %s\n", user.Location)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&firstName, "first-name", "", "Update first name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "Update last name")
	cmd.Flags().StringVar(&phone, "phone", "", "Update phone number")
	cmd.Flags().StringVar(&businessName, "business-name", "", "Update business name")
	cmd.Flags().StringVar(&location, "location", "", "Update location")
	return cmd
}

func authPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Change your password",
		RunE: func(cmd *cobra.Command, args []string) error {
			oldPassword, err := promptSecret("Current password: ")
			if err != nil {
				return err
			}
			newPassword, err := promptSecret("New password: ")
			if err != nil {
				return err
			}
			confirm, err := promptSecret("Confirm new password: ")
			if err != nil {
				return err
			}
			if newPassword == "" || newPassword != confirm {
				return fmt.Errorf("new passwords do not match")
			}
			if err := app.Session.ChangePassword(context.Background(), oldPassword, newPassword); err != nil {
				return describeFailure(err)
			}
			fmt.Println("Password changed.")
			return nil
		},
	}

	return cmd
}

func readAuthFile(path string) (string, string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var email string
	var password string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "[email]", "[username]":
			if scanner.Scan() {
				email = strings.TrimSpace(scanner.Text())
			}
		case "[password]":
			if scanner.Scan() {
				password = strings.TrimSpace(scanner.Text())
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", "", err
	}
	return email, password, nil
}
