package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/cetra-finance/chamber/internal/config"
	"github.com/cetra-finance/chamber/internal/model"
	"github.com/cetra-finance/chamber/internal/service"
	"github.com/cetra-finance/chamber/internal/signer"
	"github.com/gagliardetto/solana-go"
)

type legReport struct {
	Index           uint8  `json:"index"`
	Obligation      string `json:"obligation"`
	ObligationVault string `json:"obligation_vault"`
	PositionInfo    string `json:"position_info"`
	VaultBalance    string `json:"vault_balance"`
	VaultMeta       string `json:"vault_balance_metadata"`
	Nonce           uint8  `json:"nonce"`
	MetaNonce       uint8  `json:"meta_nonce"`
}

type chamberReport struct {
	Farm          string      `json:"farm"`
	LeveragedFarm string      `json:"leveraged_farm"`
	Chamber       string      `json:"chamber"`
	Authority     string      `json:"authority"`
	BaseATA       string      `json:"base_ata"`
	QuoteATA      string      `json:"quote_ata"`
	FarmRecord    string      `json:"farm_record"`
	Legs          []legReport `json:"legs"`
}

// Prints every derived address of the configured farms, including the
// vault nonces the stake step expects.
func main() {
	only := flag.String("farm", "", "limit output to one leveraged farm address")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	program, err := solana.PublicKeyFromBase58(cfg.Program.ID)
	if err != nil {
		log.Fatalf("Invalid program id: %v", err)
	}
	farms, err := service.NewFarmRegistry(cfg.Farms)
	if err != nil {
		log.Fatalf("Invalid farm config: %v", err)
	}

	deriver := signer.NewDeriver(program)
	var reports []chamberReport
	for _, farm := range farms.List() {
		if *only != "" && farm.LeveragedFarm.String() != *only {
			continue
		}
		report, err := inspect(deriver, farm)
		if err != nil {
			log.Fatalf("%s: %v", farm.Name, err)
		}
		reports = append(reports, report)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reports); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func inspect(d *signer.Deriver, farm *model.Farm) (chamberReport, error) {
	address, _, err := d.Chamber(farm.LeveragedFarm)
	if err != nil {
		return chamberReport{}, err
	}
	authority, _, err := d.Authority(address)
	if err != nil {
		return chamberReport{}, err
	}
	baseATA, err := signer.HoldingAccount(authority, farm.BaseMint)
	if err != nil {
		return chamberReport{}, err
	}
	quoteATA, err := signer.HoldingAccount(authority, farm.QuoteMint)
	if err != nil {
		return chamberReport{}, err
	}
	accounts, err := d.Accounts(&model.Chamber{Address: address, Authority: authority}, farm)
	if err != nil {
		return chamberReport{}, err
	}

	report := chamberReport{
		Farm:          farm.Name,
		LeveragedFarm: farm.LeveragedFarm.String(),
		Chamber:       address.String(),
		Authority:     authority.String(),
		BaseATA:       baseATA.String(),
		QuoteATA:      quoteATA.String(),
		FarmRecord:    accounts.Farm.String(),
	}
	for _, leg := range accounts.Legs {
		report.Legs = append(report.Legs, legReport{
			Index:           leg.Index,
			Obligation:      leg.Obligation.String(),
			ObligationVault: leg.ObligationVault.String(),
			PositionInfo:    leg.PositionInfo.String(),
			VaultBalance:    leg.VaultBalance.String(),
			VaultMeta:       leg.VaultMeta.String(),
			Nonce:           leg.VaultBalanceBump,
			MetaNonce:       leg.VaultMetaBump,
		})
	}
	return report, nil
}
