package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/pelletier/go-toml/v2"
	bip39 "github.com/tyler-smith/go-bip39"

	xhdwallet "github.com/algorandfoundation/xhd-wallet-go"
)

const (
	ctxAddress  = "Address"
	ctxIdentity = "Identity"

	profileKhovratovich = "Khovratovich"
	profilePeikert      = "Peikert"
)

// Config holds the optional derivation defaults.
type Config struct {
	// Profile is the derivation profile name.
	Profile string `toml:"profile"`
	// Accounts is the number of accounts to derive.
	Accounts uint32 `toml:"accounts"`
	// Addresses is the number of addresses to derive per account.
	Addresses uint32 `toml:"addresses"`
}

func defaultConfig() *Config {
	return &Config{
		Profile:   profileKhovratovich,
		Accounts:  1,
		Addresses: 1,
	}
}

func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cfg: failed to read configuration: %w", err)
	}
	if err = toml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("cfg: failed to parse configuration: %w", err)
	}
	switch cfg.Profile {
	case profileKhovratovich, profilePeikert:
	default:
		return nil, fmt.Errorf("cfg: unknown profile: %s", cfg.Profile)
	}
	return cfg, nil
}

func perror(err error) {
	fmt.Printf("err: %v\n", err)
	os.Exit(1)
}

func main() {
	cfgPath := flag.String("config", "", "optional toml file with derivation defaults")
	flag.Parse()

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		perror(err)
	}

	// xhd-derive is explicitly interactive because people will probably
	// splatter their mnemonic into their shell history otherwise.
	if err := doInteractive(cfg); err != nil {
		perror(err)
	}
}

func doInteractive(cfg *Config) error {
	fmt.Printf("\n")
	fmt.Printf("  xhd-derive - Recover wallet keys and addresses from a mnemonic\n")
	fmt.Printf("\n")

	var ctxName string
	if err := survey.AskOne(&survey.Select{
		Message: "Which key context do you want",
		Options: []string{ctxAddress, ctxIdentity},
	}, &ctxName); err != nil {
		return err
	}
	ctx := xhdwallet.KeyContextAddress
	if ctxName == ctxIdentity {
		ctx = xhdwallet.KeyContextIdentity
	}

	var mnemonic string
	if err := survey.AskOne(&survey.Password{
		Message: "Enter your mnemonic",
	}, &mnemonic); err != nil {
		return err
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return fmt.Errorf("xhd-derive: invalid mnemonic")
	}

	var passphrase string
	if err := survey.AskOne(&survey.Password{
		Message: "Enter your passphrase (blank for none)",
	}, &passphrase); err != nil {
		return err
	}

	wallet, err := xhdwallet.New(bip39.NewSeed(mnemonic, passphrase))
	if err != nil {
		return err
	}
	defer wallet.Zeroize()

	profile := xhdwallet.ProfileKhovratovich
	if cfg.Profile == profilePeikert {
		profile = xhdwallet.ProfilePeikert
	}

	for account := uint32(0); account < cfg.Accounts; account++ {
		for index := uint32(0); index < cfg.Addresses; index++ {
			pk, err := wallet.KeyGen(ctx, account, 0, index, profile)
			if err != nil {
				return err
			}
			addr, err := xhdwallet.EncodeAddress(pk)
			if err != nil {
				return err
			}

			fmt.Printf("\n")
			fmt.Printf("  Path:       %s/%d'/0/%d\n", ctxName, account, index)
			fmt.Printf("  Public key: %x\n", pk)
			fmt.Printf("  Address:    %s\n", addr)
		}
	}
	fmt.Printf("\n")

	return nil
}
