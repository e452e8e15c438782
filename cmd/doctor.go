package cmd

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/ircclaw/internal/config"
	"github.com/nextlevelbuilder/ircclaw/internal/irc"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration health without connecting",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("ircclaw doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, using defaults)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  Gateway:")
	fmt.Printf("    %-10s %s\n", "URL:", cfg.Gateway.URL)
	switch {
	case strings.HasPrefix(cfg.Gateway.URL, "ws://"), strings.HasPrefix(cfg.Gateway.URL, "wss://"):
	default:
		fmt.Println("    WARNING: URL is not a ws:// or wss:// endpoint")
	}
	if cfg.Gateway.Token == "" {
		fmt.Println("    WARNING: no token configured, handshake will be unauthenticated")
	}

	ids := make([]string, 0, len(cfg.Accounts))
	for id := range cfg.Accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	problems := 0
	for _, id := range ids {
		acc := cfg.Accounts[id]
		fmt.Println()
		fmt.Printf("  Account %s:\n", id)
		fmt.Printf("    %-10s %s:%d (tls=%v, enabled=%v)\n", "Server:", acc.Server, acc.EffectivePort(), acc.TLS, acc.Enabled)
		fmt.Printf("    %-10s %s\n", "Nick:", acc.Nick)

		problems += checkAccount(acc)
	}

	fmt.Println()
	if problems > 0 {
		fmt.Printf("  %d problem(s) found\n", problems)
		os.Exit(1)
	}
	fmt.Println("  All checks passed")
}

func checkAccount(acc config.AccountConfig) int {
	problems := 0
	fail := func(format string, args ...any) {
		fmt.Printf("    ERROR: "+format+"\n", args...)
		problems++
	}
	warn := func(format string, args ...any) {
		fmt.Printf("    WARNING: "+format+"\n", args...)
	}

	if acc.Server == "" {
		fail("no server configured")
	}
	if !irc.IsValidNick(acc.Nick) {
		fail("invalid nick %q", acc.Nick)
	}
	for _, ch := range acc.Channels {
		if !irc.IsValidChannel(ch) {
			fail("invalid channel %q", ch)
		}
	}

	if acc.SASL.Configured() && acc.NickServPassword != "" {
		warn("both SASL and NickServ configured, SASL wins and NickServ is ignored")
	}
	if acc.NickServPassword != "" && !acc.AllowPlainAuth {
		fail("nickserv_password requires allow_plain_auth=true (credentials would go over the wire in plain text)")
	}
	if !acc.TLS && (acc.SASL.Configured() || acc.NickServPassword != "" || acc.ServerPassword != "") {
		warn("credentials configured without TLS")
	}

	if irc.ParseDMPolicy(acc.DM.Policy) == irc.DMPolicyInvalid {
		warn("unrecognized dm policy %q, every DM will be denied", acc.DM.Policy)
	}
	if irc.ParseGroupPolicy(acc.Groups.Policy) == irc.GroupPolicyInvalid {
		warn("unrecognized group policy %q, every channel message will be denied", acc.Groups.Policy)
	}
	if irc.ParseGroupPolicy(acc.Groups.Policy) == irc.GroupPolicyAllowlist && len(acc.Groups.PerGroup) == 0 && len(acc.Channels) > 0 {
		warn("allowlist policy with no per_group rules, all channel messages will be dropped")
	}

	return problems
}
