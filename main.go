package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/credvault/credvault/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit(ctx, os.Args[2:])
	case "unlock":
		runUnlock(ctx, os.Args[2:])
	case "add":
		runAdd(ctx, os.Args[2:])
	case "ls", "list":
		runLs(ctx, os.Args[2:])
	case "show":
		runShow(ctx, os.Args[2:])
	case "rm":
		runRm(ctx, os.Args[2:])
	case "passwd":
		runPasswd(ctx, os.Args[2:])
	case "export":
		runExport(ctx, os.Args[2:])
	case "import":
		runImport(ctx, os.Args[2:])
	case "biometric":
		runBiometric(ctx, os.Args[2:])
	case "status":
		runStatus(ctx, os.Args[2:])
	case "help", "-h", "--help":
		if len(os.Args) <= 2 {
			printUsage()
			return
		}
		printCommandHelp(os.Args[2])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runInit(_ context.Context, args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Init()
}

func runUnlock(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("unlock", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Unlock(ctx)
}

func runAdd(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	service := fs.String("service", "", "Service label or domain (required)")
	username := fs.String("username", "", "Username or email")
	notes := fs.String("notes", "", "Free-form notes")
	tags := fs.String("tags", "", "Comma-separated categories")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	var categories []string
	for _, t := range strings.Split(*tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			categories = append(categories, t)
		}
	}
	cmd.Add(ctx, *service, *username, categories, *notes)
}

func runLs(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("ls", flag.ExitOnError)
	category := fs.String("tag", "", "Only show entries with this category")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Ls(ctx, *category)
}

func runShow(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	reveal := fs.Bool("reveal", false, "Print the password in clear text")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: credvault show [--reveal] <id|service>")
		os.Exit(1)
	}

	cmd.Show(ctx, fs.Arg(0), *reveal)
}

func runRm(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Rm(ctx, fs.Arg(0))
}

func runPasswd(_ context.Context, args []string) {
	fs := flag.NewFlagSet("passwd", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Passwd()
}

func runExport(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("out", "", "Write to file instead of stdout")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Export(ctx, *out)
}

func runImport(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	replace := fs.Bool("replace", false, "Discard current entries instead of merging")
	dryRun := fs.Bool("dry-run", false, "Preview changes without writing")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Import(ctx, fs.Arg(0), *replace, *dryRun)
}

func runBiometric(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: credvault biometric <enable|disable|unlock>")
		os.Exit(1)
	}
	switch args[0] {
	case "enable":
		cmd.BiometricEnable()
	case "disable":
		cmd.BiometricDisable()
	case "unlock":
		cmd.BiometricUnlock(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown biometric subcommand: %s\n", args[0])
		os.Exit(1)
	}
}

func runStatus(_ context.Context, args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Status()
}

func printUsage() {
	fmt.Println("credvault - Encrypted credential vault with biometric escrow")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  credvault <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  init        Create the vault with a master password")
	fmt.Println("  unlock      Verify the master password")
	fmt.Println("  add         Store a new credential")
	fmt.Println("  ls, list    List stored credentials")
	fmt.Println("  show        Show one credential")
	fmt.Println("  rm          Remove a credential by id")
	fmt.Println("  passwd      Change the master password")
	fmt.Println("  export      Export the protected entry list")
	fmt.Println("  import      Import entries from an export file")
	fmt.Println("  biometric   Enable, disable or use biometric unlock")
	fmt.Println("  status      Show vault status (no password required)")
	fmt.Println("  help        Show help for a command")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  credvault init                        # Create new vault")
	fmt.Println("  credvault add --service github.com    # Store a credential")
	fmt.Println("  credvault show --reveal github.com    # Print the password")
	fmt.Println("  credvault import --dry-run backup.cv  # Preview an import")
	fmt.Println()
	fmt.Println("Use 'credvault help <command>' for more information about a command.")
}

func printCommandHelp(command string) {
	switch command {
	case "init":
		fmt.Println("credvault init")
		fmt.Println()
		fmt.Println("Creates the encrypted vault and sets the master password.")
		fmt.Println("The password is not stored anywhere - you must remember it.")
		fmt.Println("Set CREDVAULT_HOME to override the default ~/.credvault location.")
	case "unlock":
		fmt.Println("credvault unlock")
		fmt.Println()
		fmt.Println("Verifies the master password against the vault and reports the")
		fmt.Println("entry count. Reads CREDVAULT_PASSWORD when set, otherwise prompts.")
	case "add":
		fmt.Println("credvault add --service <label> [--username <name>] [--tags a,b] [--notes <text>]")
		fmt.Println()
		fmt.Println("Stores a new credential. Prompts for the credential's password.")
		fmt.Println("Free-tier vaults hold at most 10 entries; set CREDVAULT_PREMIUM")
		fmt.Println("to lift the cap.")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  credvault add --service github.com --username alice")
		fmt.Println("  credvault add --service mail.example.com --tags work,email")
	case "ls", "list":
		fmt.Println("credvault ls [--tag <category>]")
		fmt.Println()
		fmt.Println("Lists stored credentials without revealing passwords.")
	case "show":
		fmt.Println("credvault show [--reveal] <id|service>")
		fmt.Println()
		fmt.Println("Shows one credential, looked up by entry id or service label.")
		fmt.Println("Passwords stay masked unless --reveal is given.")
	case "rm":
		fmt.Println("credvault rm <id>")
		fmt.Println()
		fmt.Println("Removes a credential by entry id. Use 'credvault ls' to find ids.")
	case "passwd":
		fmt.Println("credvault passwd")
		fmt.Println()
		fmt.Println("Changes the master password and re-encrypts the whole vault.")
		fmt.Println("If the change fails at any point the old vault stays intact.")
	case "export":
		fmt.Println("credvault export [--out <file>]")
		fmt.Println()
		fmt.Println("Writes the protected export text. The export carries its own key")
		fmt.Println("derivation parameters and decrypts with the master password.")
	case "import":
		fmt.Println("credvault import [--replace] [--dry-run] <file>")
		fmt.Println()
		fmt.Println("Imports entries from an export file or a CSV.")
		fmt.Println("Default mode merges by entry id: existing entries not present in")
		fmt.Println("the import are kept, conflicting ids are overwritten.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  --replace   Discard current entries instead of merging")
		fmt.Println("  --dry-run   Show a redacted preview, write nothing")
	case "biometric":
		fmt.Println("credvault biometric <enable|disable|unlock>")
		fmt.Println()
		fmt.Println("enable   Wraps the master password under a hardware-backed key")
		fmt.Println("         so the vault unlocks without retyping it.")
		fmt.Println("disable  Deletes the escrow key and record.")
		fmt.Println("unlock   Unlocks the vault through the escrowed secret.")
	case "status":
		fmt.Println("credvault status")
		fmt.Println()
		fmt.Println("Shows vault and escrow state. Does not require a password.")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
	}
}
