// Package setup holds the interactive terminal wizard that writes a
// starter config file for the tracker.
package setup

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"walletwatch/config"
)

// GeneratedFile is where the wizard saves its result.
const GeneratedFile = "config.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// RunTUI launches the terminal configuration wizard and writes the
// resulting yaml to GeneratedFile.
func RunTUI() error {
	var (
		target          string
		pollIntervalStr string
		cacheTTLStr     string
		historyDir      string
		wantMail        bool
		confirm         bool
	)

	// defaults
	pollIntervalStr = "30s"
	cacheTTLStr = "30s"
	historyDir = "./wal/changes"

	smtp := struct {
		host     string
		portStr  string
		username string
		password string
		from     string
		to       string
		useSSL   bool
	}{portStr: "587"}

	// step 1: account
	clearScreen()
	fmt.Println(headerStyle.Render("WALLETWATCH CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Point the tracker at an account and it does the rest.\n"))

	fmt.Println(stepStyle.Render("STEP 1: ACCOUNT"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Account Address").
				Description("The observed account, e.g. 0xc2a3...e5f2").
				Value(&target).
				Validate(func(s string) error {
					if !common.IsHexAddress(s) {
						return fmt.Errorf("must be a hex account address")
					}
					return nil
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	// step 2: timing
	clearScreen()
	fmt.Println(headerStyle.Render("WALLETWATCH CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 2: TIMING"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Poll Interval").
				Description("Duration string (e.g. 30s, 1m, 5m)").
				Value(&pollIntervalStr).
				Validate(validateDuration),
			huh.NewInput().
				Title("Price Cache TTL").
				Description("How long bulk prices stay fresh (e.g. 30s)").
				Value(&cacheTTLStr).
				Validate(validateDuration),
			huh.NewInput().
				Title("History Directory").
				Description("Where change history segments are stored").
				Value(&historyDir),
		),
	).Run()
	if err != nil {
		return err
	}

	// step 3: mail
	clearScreen()
	fmt.Println(headerStyle.Render("WALLETWATCH CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 3: NOTIFICATIONS"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Send change reports by mail?").
				Description("Without mail the tracker still logs and records history").
				Value(&wantMail),
		),
	).Run()
	if err != nil {
		return err
	}

	if wantMail {
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("SMTP Host").
					Value(&smtp.host),
				huh.NewInput().
					Title("SMTP Port").
					Value(&smtp.portStr),
				huh.NewInput().
					Title("SMTP Username").
					Value(&smtp.username),
				huh.NewInput().
					Title("SMTP Password").
					Value(&smtp.password).
					EchoMode(huh.EchoModePassword),
				huh.NewInput().
					Title("From Address").
					Value(&smtp.from),
				huh.NewInput().
					Title("Recipients").
					Description("Comma separated list of addresses").
					Value(&smtp.to),
				huh.NewConfirm().
					Title("Use implicit SSL?").
					Description("Port 465 style; otherwise STARTTLS is attempted").
					Value(&smtp.useSSL),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	// confirmation
	clearScreen()
	fmt.Println(headerStyle.Render("WALLETWATCH CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	summary := fmt.Sprintf(
		"Account: %s\nPoll interval: %s\nPrice cache TTL: %s\nHistory: %s\nMail: %s\n",
		target, pollIntervalStr, cacheTTLStr, historyDir, mailSummary(wantMail, smtp.host),
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}

	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	pollInterval, _ := time.ParseDuration(pollIntervalStr)
	cacheTTL, _ := time.ParseDuration(cacheTTLStr)

	file := config.FileConfig{
		Target:           target,
		PollIntervalSec:  int(pollInterval.Seconds()),
		PriceCacheTTLSec: int(cacheTTL.Seconds()),
		HistoryDir:       historyDir,
	}

	if wantMail {
		file.SMTP.Host = smtp.host
		file.SMTP.Username = smtp.username
		file.SMTP.Password = smtp.password
		file.SMTP.From = smtp.from
		file.SMTP.UseSSL = smtp.useSSL
		fmt.Sscanf(smtp.portStr, "%d", &file.SMTP.Port)
		for _, part := range strings.Split(smtp.to, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				file.SMTP.To = append(file.SMTP.To, trimmed)
			}
		}
	}

	data, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	if err := os.WriteFile(GeneratedFile, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(
		fmt.Sprintf("\n✓ Configuration saved to %s\nStarting tracker...", GeneratedFile)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return nil
}

func clearScreen() {
	fmt.Print("\033[H\033[2J")
}

func validateDuration(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	if d < time.Second {
		return fmt.Errorf("must be at least one second")
	}
	return nil
}

func mailSummary(enabled bool, host string) string {
	if !enabled {
		return "disabled"
	}
	return "via " + host
}
