package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/basket-slippage/pkg/fixedpoint"
	"github.com/mselser95/basket-slippage/pkg/types"
	"gopkg.in/yaml.v3"
)

// Scenario describes the basket and the market it trades on (YAML).
// Decimal fields are strings so they keep full 18-decimal precision.
type Scenario struct {
	Name       string            `yaml:"name"`
	Components []ComponentConfig `yaml:"components"`
	Contracts  ContractsConfig   `yaml:"contracts"`
	Paper      PaperConfig       `yaml:"paper"`
}

// ComponentConfig is one basket component. Token, Metapool and Vault are
// used by the live backend; the price fields by the paper backend.
type ComponentConfig struct {
	ID         string `yaml:"id"`
	Token      string `yaml:"token"`
	Metapool   string `yaml:"metapool"`
	Vault      string `yaml:"vault"`
	PoolRate   string `yaml:"pool_rate"`
	SharePrice string `yaml:"share_price"`
	PoolDrift  string `yaml:"pool_drift"`
	ShareDrift string `yaml:"share_drift"`
	Units      string `yaml:"units"`
}

// ContractsConfig holds the addresses the live backend talks to.
type ContractsConfig struct {
	BatchInteraction string `yaml:"batch_interaction"`
	Issuance         string `yaml:"issuance"`
	SetToken         string `yaml:"set_token"`
	BaseToken        string `yaml:"base_token"`
	ReferencePool    string `yaml:"reference_pool"`
}

// PaperConfig parameterizes the in-process market.
type PaperConfig struct {
	AnchorTime     time.Time     `yaml:"anchor_time"` // timestamp of the start block
	BlockTime      time.Duration `yaml:"block_time"`
	Reference      string        `yaml:"reference"`
	ReferenceDrift string        `yaml:"reference_drift"`
	Fee            string        `yaml:"fee"`
	Depth          string        `yaml:"depth"`
	MaxMintValue   string        `yaml:"max_mint_value"`
}

// DefaultScenario is a four-component stablecoin basket priced near par.
func DefaultScenario() *Scenario {
	return &Scenario{
		Name: "default",
		Components: []ComponentConfig{
			{ID: "yDUSD", PoolRate: "1.0102", SharePrice: "1.0231", PoolDrift: "0.00000001", ShareDrift: "0.00000002", Units: "0.25"},
			{ID: "yFRAX", PoolRate: "1.0051", SharePrice: "1.0122", PoolDrift: "0.00000001", ShareDrift: "0.00000001", Units: "0.25"},
			{ID: "yUSDN", PoolRate: "1.0089", SharePrice: "1.0410", PoolDrift: "0.00000002", ShareDrift: "0.00000003", Units: "0.25"},
			{ID: "yUST", PoolRate: "1.0036", SharePrice: "1.0075", PoolDrift: "0", ShareDrift: "0.00000001", Units: "0.25"},
		},
		Paper: PaperConfig{
			AnchorTime:     time.Date(2021, time.July, 16, 0, 0, 0, 0, time.UTC),
			BlockTime:      13 * time.Second,
			Reference:      "1.0159",
			ReferenceDrift: "0.000000005",
			Fee:            "0.001",
			Depth:          "50000000000",
		},
	}
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	s, err := ParseScenario(raw)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return s, nil
}

// ParseScenario decodes YAML on top of the default paper settings.
func ParseScenario(raw []byte) (*Scenario, error) {
	s := &Scenario{Paper: DefaultScenario().Paper}
	err := yaml.Unmarshal(raw, s)
	if err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}

	err = s.Validate()
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the scenario is usable by the paper backend.
// ValidateLive adds the address checks of the live backend.
func (s *Scenario) Validate() error {
	err := s.check()
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidConfiguration, err)
	}
	return nil
}

func (s *Scenario) check() error {
	if s == nil {
		return errors.New("scenario is nil")
	}
	if len(s.Components) == 0 {
		return errors.New("components: at least one is required")
	}

	seen := make(map[string]bool, len(s.Components))
	for i, c := range s.Components {
		if c.ID == "" {
			return fmt.Errorf("components[%d].id is required", i)
		}
		if seen[c.ID] {
			return fmt.Errorf("components[%d]: duplicate id %q", i, c.ID)
		}
		seen[c.ID] = true

		for field, v := range map[string]string{
			"pool_rate":   c.PoolRate,
			"share_price": c.SharePrice,
			"pool_drift":  c.PoolDrift,
			"share_drift": c.ShareDrift,
			"units":       c.Units,
		} {
			err := checkDecimal(v)
			if err != nil {
				return fmt.Errorf("components[%d].%s: %w", i, field, err)
			}
		}
	}

	for field, v := range map[string]string{
		"reference":       s.Paper.Reference,
		"reference_drift": s.Paper.ReferenceDrift,
		"fee":             s.Paper.Fee,
		"depth":           s.Paper.Depth,
		"max_mint_value":  s.Paper.MaxMintValue,
	} {
		err := checkDecimal(v)
		if err != nil {
			return fmt.Errorf("paper.%s: %w", field, err)
		}
	}

	if s.Paper.BlockTime <= 0 {
		return errors.New("paper.block_time must be positive")
	}
	return nil
}

// ValidateLive checks every contract address the live backend needs.
func (s *Scenario) ValidateLive() error {
	err := s.Validate()
	if err != nil {
		return err
	}

	for field, v := range map[string]string{
		"contracts.batch_interaction": s.Contracts.BatchInteraction,
		"contracts.issuance":          s.Contracts.Issuance,
		"contracts.set_token":         s.Contracts.SetToken,
		"contracts.base_token":        s.Contracts.BaseToken,
		"contracts.reference_pool":    s.Contracts.ReferencePool,
	} {
		if !common.IsHexAddress(v) {
			return fmt.Errorf("%w: %s: invalid address %q", types.ErrInvalidConfiguration, field, v)
		}
	}

	for i, c := range s.Components {
		for field, v := range map[string]string{"token": c.Token, "metapool": c.Metapool, "vault": c.Vault} {
			if !common.IsHexAddress(v) {
				return fmt.Errorf("%w: components[%d].%s: invalid address %q", types.ErrInvalidConfiguration, i, field, v)
			}
		}
	}
	return nil
}

// Decimal parses an optional decimal field; empty means zero.
func Decimal(s string) (fixedpoint.Value, error) {
	if s == "" {
		return fixedpoint.Zero(), nil
	}
	return fixedpoint.Parse(s)
}

func checkDecimal(s string) error {
	_, err := Decimal(s)
	return err
}
