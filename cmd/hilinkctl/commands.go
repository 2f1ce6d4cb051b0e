package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hilinkctl/hilinkctl/internal/config"
	"github.com/hilinkctl/hilinkctl/internal/hilink"
)

// Connection flags shared by device commands.
var (
	routerHost     string
	routerProfile  string
	routerUser     string
	routerPassword string
	requestTimeout int
	forceLogin     bool
	rebootYes      bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&routerHost, "host", "", "Router address or host:port (default 192.168.8.1)")
	rootCmd.PersistentFlags().StringVar(&routerProfile, "router", "", "Saved router profile name")
	rootCmd.PersistentFlags().StringVar(&routerUser, "user", "", "Login username (default admin)")
	rootCmd.PersistentFlags().StringVar(&routerPassword, "password", "", "Login password (prompted when omitted)")
	rootCmd.PersistentFlags().IntVar(&requestTimeout, "timeout", 10, "HTTP request timeout in seconds")

	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(signalCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(rebootCmd)
	rootCmd.AddCommand(routerCmd)

	loginCmd.Flags().BoolVar(&forceLogin, "force", false, "Re-login even when a session is already logged in")
	rebootCmd.Flags().BoolVarP(&rebootYes, "yes", "y", false, "Skip the confirmation prompt")

	routerCmd.AddCommand(routerAddCmd)
	routerCmd.AddCommand(routerListCmd)
	routerCmd.AddCommand(routerRemoveCmd)
}

// target is the resolved connection target for a command invocation.
type target struct {
	host     string
	username string
	password string
	profile  string
}

// resolveTarget merges flags with the saved profile registry. Precedence:
// explicit flags, then the named (or default) profile, then factory
// defaults.
func resolveTarget(needPassword bool) (*target, error) {
	t := &target{
		host:     routerHost,
		username: routerUser,
		password: routerPassword,
	}

	registry, err := config.LoadRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	profile := routerProfile
	if profile == "" && t.host == "" {
		profile = registry.Default
	}
	if profile != "" {
		router := registry.GetRouter(profile)
		if router == nil {
			return nil, fmt.Errorf("unknown router profile %q (see 'hilinkctl router list')", profile)
		}
		t.profile = profile
		if t.host == "" {
			t.host = router.Host
		}
		if t.username == "" {
			t.username = router.Username
		}
	}

	if t.host == "" {
		t.host = hilink.DefaultHost
	}
	if t.username == "" {
		t.username = config.DefaultUsername
	}

	if needPassword && t.password == "" {
		t.password, err = promptPassword(fmt.Sprintf("Password for %s@%s: ", t.username, t.host))
		if err != nil {
			return nil, err
		}
	}

	return t, nil
}

// promptPassword reads a password without echo. An empty answer is allowed:
// some devices run without authentication.
func promptPassword(prompt string) (string, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", fmt.Errorf("no password given and stdin is not a terminal (use --password)")
	}
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}

// connect opens a device session for the resolved target.
func connect(ctx context.Context, t *target) (*hilink.Session, error) {
	session := hilink.NewSession(t.host)
	session.SetTimeout(time.Duration(requestTimeout) * time.Second)
	if err := session.Connect(ctx); err != nil {
		return nil, err
	}
	return session, nil
}

// touchProfile records a successful connection on the profile, best effort.
func touchProfile(t *target) {
	if t.profile == "" {
		return
	}
	registry, err := config.LoadRegistry()
	if err != nil {
		return
	}
	registry.TouchRouter(t.profile)
	_ = registry.Save()
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the device's current login state",
	Long: `Query user/state-login and print the reported session state and the
password encoding the device demands. Does not submit credentials.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := resolveTarget(false)
		if err != nil {
			return err
		}

		session, err := connect(cmd.Context(), t)
		if err != nil {
			return err
		}

		user := hilink.NewUser(session, t.username, t.password)
		state, err := user.StateLogin(cmd.Context())
		if err != nil {
			if hilink.IsNotSupported(err) {
				fmt.Println("Device does not report login state (no login required)")
				return nil
			}
			return err
		}

		fmt.Printf("Host:          %s\n", t.host)
		fmt.Printf("Login state:   %s\n", describeState(state.State))
		fmt.Printf("Password type: %s\n", describePasswordType(state.PasswordType))
		touchProfile(t)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Verify credentials by logging in",
	Long: `Negotiate a login with the device: probe the login state, encode the
password the way the device demands, and submit it.

Typed failures are reported precisely: wrong username, wrong password,
attempts exhausted, password change required, and so on.`,
	Example: `  # Login with a saved profile, prompting for the password
  hilinkctl login --router home

  # Force a fresh login even when a session exists
  hilinkctl login --host 192.168.8.1 --user admin --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := resolveTarget(true)
		if err != nil {
			return err
		}

		session, err := connect(cmd.Context(), t)
		if err != nil {
			return err
		}

		user := hilink.NewUser(session, t.username, t.password)
		ok, err := user.Login(cmd.Context(), forceLogin)
		if err != nil {
			if loginErr, is := hilink.IsLoginError(err); is {
				return fmt.Errorf("login rejected: %s", loginErr)
			}
			return err
		}
		if !ok {
			return fmt.Errorf("device did not acknowledge the login")
		}

		fmt.Printf("Logged in to %s as %s\n", t.host, t.username)
		touchProfile(t)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the device session",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := resolveTarget(false)
		if err != nil {
			return err
		}

		session, err := connect(cmd.Context(), t)
		if err != nil {
			return err
		}

		user := hilink.NewUser(session, t.username, t.password)
		if err := user.Logout(cmd.Context()); err != nil {
			return err
		}

		fmt.Println("Logged out")
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show device information",
	Long:  `Login (when the device requires it) and print device identity and firmware details.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(cmd, func(ctx context.Context, device *hilink.Device) error {
			info, err := device.Information(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Device:     %s (%s)\n", info.DeviceName, info.ProductFamily)
			fmt.Printf("Serial:     %s\n", info.SerialNumber)
			fmt.Printf("IMEI:       %s\n", info.IMEI)
			fmt.Printf("Hardware:   %s\n", info.HardwareVersion)
			fmt.Printf("Software:   %s\n", info.SoftwareVersion)
			fmt.Printf("Web UI:     %s\n", info.WebUIVersion)
			return nil
		})
	},
}

var signalCmd = &cobra.Command{
	Use:   "signal",
	Short: "Show radio signal measurements",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(cmd, func(ctx context.Context, device *hilink.Device) error {
			signal, err := device.Signal(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Mode:  %s\n", signal.Mode)
			fmt.Printf("RSSI:  %s\n", signal.RSSI)
			fmt.Printf("RSRP:  %s\n", signal.RSRP)
			fmt.Printf("RSRQ:  %s\n", signal.RSRQ)
			fmt.Printf("SINR:  %s\n", signal.SINR)
			fmt.Printf("Cell:  %s (PCI %s)\n", signal.Cell, signal.PCI)
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connection status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(cmd, func(ctx context.Context, device *hilink.Device) error {
			status, err := device.Status(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Connection:  %d\n", status.ConnectionStatus)
			fmt.Printf("Network:     %d\n", status.CurrentNetworkType)
			fmt.Printf("Signal:      %d/5\n", status.SignalStrength)
			fmt.Printf("WAN IP:      %s\n", status.WanIPAddress)
			fmt.Printf("DNS:         %s, %s\n", status.PrimaryDNS, status.SecondaryDNS)
			fmt.Printf("WiFi users:  %d\n", status.CurrentWifiUser)
			return nil
		})
	},
}

var rebootCmd = &cobra.Command{
	Use:   "reboot",
	Short: "Reboot the device",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !rebootYes {
			return fmt.Errorf("refusing to reboot without --yes")
		}
		return withDevice(cmd, func(ctx context.Context, device *hilink.Device) error {
			if err := device.Reboot(ctx); err != nil {
				return err
			}
			fmt.Println("Reboot accepted, device is going down")
			return nil
		})
	},
}

// withDevice resolves the target, connects, logs in, and hands the Device
// service to fn. All the authenticated read commands share this flow.
func withDevice(cmd *cobra.Command, fn func(ctx context.Context, device *hilink.Device) error) error {
	t, err := resolveTarget(true)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	session, err := connect(ctx, t)
	if err != nil {
		return err
	}

	user := hilink.NewUser(session, t.username, t.password)
	if _, err := user.Login(ctx, false); err != nil {
		if loginErr, is := hilink.IsLoginError(err); is {
			return fmt.Errorf("login rejected: %s", loginErr)
		}
		return err
	}

	touchProfile(t)
	return fn(ctx, hilink.NewDevice(session))
}

var routerCmd = &cobra.Command{
	Use:   "router",
	Short: "Manage saved router profiles",
}

var routerAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Save a router profile",
	Long: `Save a named router profile with its address and username.
The first saved profile becomes the default. Passwords are never stored.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if routerHost == "" {
			return fmt.Errorf("--host is required")
		}

		registry, err := config.LoadRegistry()
		if err != nil {
			return err
		}

		registry.SetRouter(args[0], &config.Router{
			Host:     routerHost,
			Username: routerUser,
		})
		if err := registry.Save(); err != nil {
			return err
		}

		fmt.Printf("Saved profile %q (%s)\n", args[0], routerHost)
		return nil
	},
}

var routerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved router profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := config.LoadRegistry()
		if err != nil {
			return err
		}

		if len(registry.Routers) == 0 {
			fmt.Println("No saved profiles. Use 'hilinkctl router add' to create one.")
			return nil
		}

		names := make([]string, 0, len(registry.Routers))
		for name := range registry.Routers {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			router := registry.Routers[name]
			marker := " "
			if name == registry.Default {
				marker = "*"
			}
			fmt.Printf("%s %-16s %s@%s\n", marker, name, router.Username, router.Host)
		}
		return nil
	},
}

var routerRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a saved router profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := config.LoadRegistry()
		if err != nil {
			return err
		}

		if !registry.RemoveRouter(args[0]) {
			return fmt.Errorf("unknown router profile %q", args[0])
		}
		if err := registry.Save(); err != nil {
			return err
		}

		fmt.Printf("Removed profile %q\n", args[0])
		return nil
	},
}

// describeState renders a LoginState for humans.
func describeState(state hilink.LoginState) string {
	switch state {
	case hilink.StateLoggedIn:
		return "logged in"
	case hilink.StateNotLoggedIn:
		return "not logged in"
	case hilink.StateRepeatLogin:
		return "repeat login (too many sessions)"
	default:
		return fmt.Sprintf("unknown (%d)", int(state))
	}
}

// describePasswordType renders a PasswordType for humans.
func describePasswordType(pt hilink.PasswordType) string {
	switch pt {
	case hilink.PasswordTypePlain:
		return "plain (Base64)"
	case hilink.PasswordTypeSHA256:
		return "SHA-256 double hash"
	default:
		return fmt.Sprintf("unknown (%d)", int(pt))
	}
}
