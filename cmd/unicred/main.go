package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/unicred/unicred-cli/internal/api"
	"github.com/unicred/unicred-cli/internal/config"
	"github.com/unicred/unicred-cli/internal/session"
	"github.com/unicred/unicred-cli/internal/share"
	"github.com/unicred/unicred-cli/internal/storage"
	"github.com/unicred/unicred-cli/internal/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		return nil
	}
	cmd, args := args[0], args[1:]

	switch cmd {
	case "help", "--help", "-h":
		printUsage()
		return nil
	case "version", "--version", "-v":
		fmt.Printf("unicred %s\n", version.RichVersion())
		return nil
	}

	key, err := storage.GetOrCreateDeviceKey(cfg.DeviceKeyFile)
	if err != nil {
		return fmt.Errorf("device key: %w", err)
	}
	store, err := session.NewStore(storage.NewFileStore(cfg.SessionFile, key))
	if err != nil {
		return err
	}
	client := api.NewClient(cfg, store, log)
	ctx := context.Background()

	err = dispatch(ctx, cmd, args, client, store)
	if errors.Is(err, api.ErrNoToken) {
		return fmt.Errorf("%w (run `unicred login` first)", err)
	}
	return err
}

func dispatch(ctx context.Context, cmd string, args []string, client *api.Client, store *session.Store) error {
	switch cmd {
	case "login":
		return loginCommand(ctx, args, client)
	case "logout":
		if err := client.Logout(); err != nil {
			return err
		}
		fmt.Println("Signed out.")
		return nil
	case "whoami":
		return whoamiCommand(store)
	case "send-otp":
		return sendOTPCommand(ctx, args, client)
	case "reset-password":
		return resetPasswordCommand(ctx, args, client)
	case "attendance":
		term := flagValue(args, "term")
		out, err := client.Attendance(ctx, term)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, out)
	case "grades":
		term := flagValue(args, "term")
		out, err := client.Grades(ctx, term)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, out)
	case "timetable":
		week := flagValue(args, "week")
		out, err := client.Timetable(ctx, week)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, out)
	case "roadmap":
		out, err := client.Roadmap(ctx)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, out)
	case "credentials":
		out, err := client.Credentials(ctx)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, out)
	case "credential":
		if len(args) != 1 {
			return fmt.Errorf("usage: unicred credential <id>")
		}
		out, err := client.CredentialByID(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, out)
	case "verify":
		return verifyCommand(ctx, args, client)
	case "share":
		return shareCommand(ctx, args, client)
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func loginCommand(ctx context.Context, args []string, client *api.Client) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	email := fs.String("email", "", "Account email")
	password := fs.String("password", "", "Account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		return fmt.Errorf("usage: unicred login -email <email> -password <password>")
	}

	profile, err := client.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Printf("Signed in as %s (%s)\n", profile.UserName, profile.Role)
	return nil
}

func whoamiCommand(store *session.Store) error {
	snap := store.Current()
	if !snap.Authenticated() {
		fmt.Println("Not signed in.")
		return nil
	}
	return printJSON(os.Stdout, snap.Profile)
}

func sendOTPCommand(ctx context.Context, args []string, client *api.Client) error {
	fs := flag.NewFlagSet("send-otp", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	email := fs.String("email", "", "Account email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return fmt.Errorf("usage: unicred send-otp -email <email>")
	}
	if err := client.SendOTP(ctx, *email); err != nil {
		return err
	}
	fmt.Println("OTP sent. Check your inbox.")
	return nil
}

func resetPasswordCommand(ctx context.Context, args []string, client *api.Client) error {
	fs := flag.NewFlagSet("reset-password", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	email := fs.String("email", "", "Account email")
	otp := fs.String("otp", "", "One-time password from send-otp")
	newPassword := fs.String("new-password", "", "New password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *otp == "" || *newPassword == "" {
		return fmt.Errorf("usage: unicred reset-password -email <email> -otp <otp> -new-password <password>")
	}
	if err := client.ResetPassword(ctx, *email, *otp, *newPassword); err != nil {
		return err
	}
	fmt.Println("Password updated.")
	return nil
}

func verifyCommand(ctx context.Context, args []string, client *api.Client) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: unicred verify <link-or-credential-token>")
	}

	credential := args[0]
	if strings.Contains(credential, "://") {
		parsed, err := share.ParseLink(credential)
		if err != nil {
			return err
		}
		credential = parsed
	}

	if claims, err := api.PeekCredentialUnverified(credential); err == nil {
		fmt.Printf("Presented: %s %q issued by %s\n", claims.CredentialType, claims.Title, claims.Issuer)
	}

	result, err := client.VerifyCredential(ctx, credential)
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, result)
}

func shareCommand(ctx context.Context, args []string, client *api.Client) error {
	fs := flag.NewFlagSet("share", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	pngPath := fs.String("png", "", "Write the QR code as a PNG to this path")
	size := fs.Int("size", 512, "PNG size in pixels")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: unicred share [-png <path>] <credential-id>")
	}

	credential, err := client.CredentialByID(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	link := share.BuildLink(credential.JWT)
	fmt.Println(link)

	if *pngPath != "" {
		png, err := share.PNG(link, *size)
		if err != nil {
			return err
		}
		if err := os.WriteFile(*pngPath, png, 0644); err != nil {
			return fmt.Errorf("write png: %w", err)
		}
		fmt.Printf("QR code written to %s\n", *pngPath)
		return nil
	}

	qr, err := share.TerminalQR(link)
	if err != nil {
		return err
	}
	fmt.Print(qr)
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func printUsage() {
	fmt.Println(`unicred - UniCred academic credential client

Usage:
  unicred login -email <email> -password <password>   Sign in and persist the session
  unicred logout                                      Clear the local session
  unicred whoami                                      Show the signed-in profile
  unicred send-otp -email <email>                     Request a password-reset OTP
  unicred reset-password -email <e> -otp <o> -new-password <p>
  unicred attendance [-term <term>]                   Per-course attendance
  unicred grades [-term <term>]                       Course grades
  unicred timetable [-week <date>]                    Weekly schedule
  unicred roadmap                                     Program roadmap
  unicred credentials                                 List issued credentials
  unicred credential <id>                             Show one credential
  unicred verify <link-or-token>                      Verify a presented credential
  unicred share [-png <path>] <credential-id>         Print a share link and QR code
  unicred version                                     Show version information
  unicred help                                        Show this help message

Environment Variables:
  UNICRED_SERVER_URL  Server URL (default: https://api.unicred.education)
  UNICRED_HOME_DIR    Data directory (default: ~/.unicred)
  DEBUG               Enable debug logging (true/1)`)
}

// flagValue extracts a single optional -name value from args.
func flagValue(args []string, name string) string {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	value := fs.String(name, "", "")
	_ = fs.Parse(args)
	return *value
}
