// Package setup implements the interactive configuration wizard.
package setup

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/pricefeed/config"
)

// DefaultOutput is where the wizard writes the generated configuration.
const DefaultOutput = "config.gen.yaml"

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

// Answers holds what the wizard collected.
type Answers struct {
	ListenAddr string
	Assets     string
	Sources    []string

	RPCURL         string
	ChainlinkFeeds string

	PythEndpoint string
	PythFeeds    string

	CustomProvider string
	CustomURL      string
	PricePath      string
	APIKeyEnv      string
	SignerAddress  string
}

// RunTUI launches the terminal configuration wizard and writes the result to path.
func RunTUI(path string) error {
	if path == "" {
		path = DefaultOutput
	}

	a := Answers{
		ListenAddr:     config.DefaultListenAddr,
		Assets:         "ETH, BTC",
		PythEndpoint:   config.DefaultPythEndpoint,
		CustomProvider: config.ProviderBinance,
		PricePath:      "price",
	}
	var confirm bool

	step := func(title string) {
		fmt.Print("\033[H\033[2J") // clear screen
		fmt.Println(headerStyle.Render("PRICEFEED CONFIG WIZARD"))
		fmt.Println(stepStyle.Render(title))
	}

	step("STEP 1: SERVICE")
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Prices are served from the first source that answers.\n"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Listen address").
				Value(&a.ListenAddr),
			huh.NewInput().
				Title("Assets").
				Description("Comma separated symbols (e.g. ETH, BTC)").
				Value(&a.Assets).
				Validate(func(s string) error {
					if len(splitList(s)) == 0 {
						return fmt.Errorf("at least one asset is required")
					}
					return nil
				}),
			huh.NewMultiSelect[string]().
				Title("Price sources").
				Description("Tried in order: on-chain, aggregator, custom").
				Options(
					huh.NewOption("Chainlink (on-chain)", "chainlink"),
					huh.NewOption("Pyth Hermes (aggregator)", "pyth"),
					huh.NewOption("Custom feed", "custom"),
				).
				Value(&a.Sources),
		),
	).Run()
	if err != nil {
		return err
	}

	if a.has("chainlink") {
		step("STEP 2: CHAINLINK")
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Ethereum RPC URL").
					Value(&a.RPCURL),
				huh.NewInput().
					Title("Feeds").
					Description("ASSET=aggregator address, comma separated").
					Value(&a.ChainlinkFeeds).
					Validate(validateChainlinkFeeds),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	if a.has("pyth") {
		step("STEP 3: PYTH")
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Hermes endpoint").
					Value(&a.PythEndpoint),
				huh.NewInput().
					Title("Feeds").
					Description("ASSET=price feed id, comma separated").
					Value(&a.PythFeeds).
					Validate(func(s string) error {
						_, err := parsePairs(s)
						return err
					}),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	if a.has("custom") {
		step("STEP 4: CUSTOM FEED")
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title("Provider").
					Options(
						huh.NewOption("Binance ticker", config.ProviderBinance),
						huh.NewOption("Bybit ticker", config.ProviderBybit),
						huh.NewOption("Hyperliquid mid prices", config.ProviderHyperliquid),
						huh.NewOption("Generic HTTP JSON API", config.ProviderHTTP),
					).
					Value(&a.CustomProvider),
			),
		).Run()
		if err != nil {
			return err
		}

		if a.CustomProvider == config.ProviderHTTP {
			err = huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("URL").
						Description("Must contain {asset}").
						Value(&a.CustomURL),
					huh.NewInput().
						Title("Price JSON path").
						Value(&a.PricePath),
					huh.NewInput().
						Title("API key environment variable").
						Description("Optional").
						Value(&a.APIKeyEnv),
					huh.NewInput().
						Title("Signer address").
						Description("Optional, require signed prices from this address").
						Value(&a.SignerAddress),
				),
			).Run()
			if err != nil {
				return err
			}
		}
	}

	tmp, err := BuildConfig(a)
	if err != nil {
		return err
	}

	step("FINAL CONFIRMATION")
	summary := fmt.Sprintf("Listen: %s\nAssets: %s\nSources: %s\n",
		a.ListenAddr, strings.Join(tmp.Assets, ", "), strings.Join(a.Sources, ", "))
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save").
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

	if err := WriteConfig(path, tmp); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s", path)))
	return nil
}

func (a Answers) has(source string) bool {
	for _, s := range a.Sources {
		if s == source {
			return true
		}
	}
	return false
}

// BuildConfig turns wizard answers into a raw configuration and checks that it parses.
func BuildConfig(a Answers) (config.ConfigTmp, error) {
	tmp := config.ConfigTmp{
		ListenAddr: strings.TrimSpace(a.ListenAddr),
	}
	for _, asset := range splitList(a.Assets) {
		tmp.Assets = append(tmp.Assets, strings.ToUpper(asset))
	}

	if a.has("chainlink") {
		feeds, err := parsePairs(a.ChainlinkFeeds)
		if err != nil {
			return config.ConfigTmp{}, fmt.Errorf("chainlink feeds: %w", err)
		}
		tmp.Chainlink = &config.ChainlinkTmp{RPCURL: strings.TrimSpace(a.RPCURL), Feeds: feeds}
	}

	if a.has("pyth") {
		feeds, err := parsePairs(a.PythFeeds)
		if err != nil {
			return config.ConfigTmp{}, fmt.Errorf("pyth feeds: %w", err)
		}
		tmp.Pyth = &config.PythTmp{Feeds: feeds}
		if ep := strings.TrimSpace(a.PythEndpoint); ep != config.DefaultPythEndpoint {
			tmp.Pyth.Endpoint = ep
		}
	}

	if a.has("custom") {
		tmp.Custom = &config.CustomTmp{Provider: a.CustomProvider}
		if a.CustomProvider == config.ProviderHTTP {
			tmp.Custom.URL = strings.TrimSpace(a.CustomURL)
			tmp.Custom.PricePath = strings.TrimSpace(a.PricePath)
			tmp.Custom.APIKeyEnv = strings.TrimSpace(a.APIKeyEnv)
			tmp.Custom.SignerAddress = strings.TrimSpace(a.SignerAddress)
		}
	}

	// the env var may only exist where the service runs
	check := tmp
	if check.Custom != nil && check.Custom.APIKeyEnv != "" {
		custom := *check.Custom
		custom.APIKeyEnv = ""
		check.Custom = &custom
	}
	if _, err := check.Parse(); err != nil {
		return config.ConfigTmp{}, err
	}
	return tmp, nil
}

// WriteConfig marshals tmp to path.
func WriteConfig(path string, tmp config.ConfigTmp) error {
	data, err := yaml.Marshal(tmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

func validateChainlinkFeeds(s string) error {
	pairs, err := parsePairs(s)
	if err != nil {
		return err
	}
	for asset, addr := range pairs {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("%s: %q is not an address", asset, addr)
		}
	}
	return nil
}

// parsePairs reads "ETH=0xabc, BTC=0xdef".
func parsePairs(s string) (map[string]string, error) {
	out := make(map[string]string)
	for _, item := range splitList(s) {
		k, v, ok := strings.Cut(item, "=")
		k, v = strings.ToUpper(strings.TrimSpace(k)), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			return nil, fmt.Errorf("invalid entry %q, expected ASSET=value", item)
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("at least one feed is required")
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
