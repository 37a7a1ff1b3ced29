// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package converter

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/luxfi/treasury/amm"
	"github.com/luxfi/treasury/basket"
	"github.com/luxfi/treasury/contract"
	"github.com/luxfi/treasury/keeper"
	"github.com/luxfi/treasury/modules"
	"github.com/luxfi/treasury/precompileconfig"
	"github.com/luxfi/treasury/registry"
	"github.com/luxfi/treasury/token"
)

var _ contract.Configurator = (*configurator)(nil)
var _ precompileconfig.Config = (*Config)(nil)

// ConfigKey is the key used in json config files to specify this precompile config.
const ConfigKey = "treasuryConverterConfig"

// ContractAddress is the address of the treasury converter precompile
var ContractAddress = common.HexToAddress(registry.TreasuryConverter)

// ConverterPrecompile is the singleton instance
var ConverterPrecompile = NewContract(nil)

// Module is the precompile module
var Module = modules.Module{
	ConfigKey:    ConfigKey,
	Address:      ContractAddress,
	Contract:     ConverterPrecompile,
	Configurator: &configurator{},
}

type configurator struct{}

func init() {
	if err := modules.RegisterModule(Module); err != nil {
		panic(err)
	}
}

func (*configurator) MakeConfig() precompileconfig.Config {
	return new(Config)
}

// Configure builds the converter over the treasury precompile family and
// initialises its state on first activation.
func (*configurator) Configure(
	chainConfig precompileconfig.ChainConfig,
	cfg precompileconfig.Config,
	state contract.StateDB,
	blockContext contract.ConfigurationBlockContext,
) error {
	config, ok := cfg.(*Config)
	if !ok {
		return fmt.Errorf("expected config type %T, got %T: %v", &Config{}, cfg, cfg)
	}
	c, err := config.Build(log.Root())
	if err != nil {
		return err
	}
	if !c.Initialized(state) {
		target, _ := uint256.FromBig(config.TargetAmountOut)
		if err := c.Initialize(state, config.Owner, target); err != nil {
			return err
		}
		if err := c.SetPermissionless(state, config.Owner, config.Permissionless); err != nil {
			return err
		}
	}
	ConverterPrecompile.install(c)
	return nil
}

// Config implements the precompileconfig.Config interface
type Config struct {
	Upgrade         precompileconfig.Upgrade `json:"upgrade,omitempty"`
	Owner           common.Address           `json:"owner"`
	TargetToken     common.Address           `json:"targetToken"`
	Beneficiary     common.Address           `json:"beneficiary"`
	BaseToken       common.Address           `json:"baseToken,omitempty"`
	CanonicalVenue  common.Address           `json:"canonicalVenue,omitempty"`
	SecondaryVenues []common.Address         `json:"secondaryVenues,omitempty"`
	Registry        common.Address           `json:"registry,omitempty"`
	TargetAmountOut *big.Int                 `json:"targetAmountOut"`
	Permissionless  bool                     `json:"permissionless,omitempty"`
}

func (c *Config) Key() string {
	return ConfigKey
}

func (c *Config) Timestamp() *uint64 {
	return c.Upgrade.Timestamp()
}

func (c *Config) IsDisabled() bool {
	return c.Upgrade.Disable
}

func (c *Config) Equal(cfg precompileconfig.Config) bool {
	other, ok := cfg.(*Config)
	if !ok {
		return false
	}
	if len(c.SecondaryVenues) != len(other.SecondaryVenues) {
		return false
	}
	for i := range c.SecondaryVenues {
		if c.SecondaryVenues[i] != other.SecondaryVenues[i] {
			return false
		}
	}
	return c.Upgrade.Equal(&other.Upgrade) &&
		c.Owner == other.Owner &&
		c.TargetToken == other.TargetToken &&
		c.Beneficiary == other.Beneficiary &&
		c.BaseToken == other.BaseToken &&
		c.CanonicalVenue == other.CanonicalVenue &&
		c.Registry == other.Registry &&
		bigEqual(c.TargetAmountOut, other.TargetAmountOut) &&
		c.Permissionless == other.Permissionless
}

func bigEqual(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Cmp(b) == 0
}

func (c *Config) Verify(chainConfig precompileconfig.ChainConfig) error {
	if c.TargetAmountOut == nil || c.TargetAmountOut.Sign() <= 0 {
		return ErrTargetAmountZero
	}
	if c.TargetAmountOut.BitLen() > 256 {
		return fmt.Errorf("target amount out %s exceeds 256 bits", c.TargetAmountOut)
	}
	if c.Owner == (common.Address{}) || c.TargetToken == (common.Address{}) || c.Beneficiary == (common.Address{}) {
		return ErrZeroAddress
	}
	if c.Beneficiary == ContractAddress {
		return ErrInvalidBeneficiary
	}
	return nil
}

// addresses fills in the treasury family defaults.
func (c *Config) addresses() (base, canonical, reg common.Address) {
	base, canonical, reg = c.BaseToken, c.CanonicalVenue, c.Registry
	if base == (common.Address{}) {
		base = common.HexToAddress(registry.WrappedNative)
	}
	if canonical == (common.Address{}) {
		canonical = common.HexToAddress(registry.TreasuryVenue)
	}
	if reg == (common.Address{}) {
		reg = common.HexToAddress(registry.KeeperRegistry)
	}
	return base, canonical, reg
}

// Build wires a converter at ContractAddress to the treasury family
// collaborators named by the config.
func (c *Config) Build(logger log.Logger) (*Converter, error) {
	base, canonical, reg := c.addresses()
	ledger := token.Ledger{}

	venues := []Venue{amm.NewRouter(canonical, ledger)}
	secondary := c.SecondaryVenues
	if len(secondary) == 0 {
		secondary = []common.Address{common.HexToAddress(registry.TreasuryVenueAlt)}
	}
	for _, v := range secondary {
		if v != canonical {
			venues = append(venues, amm.NewRouter(v, ledger))
		}
	}
	keepers := keeper.NewRegistry(reg, c.TargetToken, ledger)

	return New(
		Params{
			Address:        ContractAddress,
			TargetToken:    c.TargetToken,
			BaseToken:      base,
			Beneficiary:    c.Beneficiary,
			CanonicalVenue: canonical,
		},
		Dependencies{
			Tokens:       ledger,
			Wrapped:      token.NewWrapped(base),
			Venues:       venues,
			Baskets:      basket.NewPools(common.HexToAddress(registry.TreasuryBasket), ledger),
			Roles:        keepers,
			Compensation: keepers,
		},
		logger,
	)
}
