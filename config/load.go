package config

import (
	"github.com/spf13/viper"
)

// Environment keys read by Load.
const (
	EnvNetwork         = "DEFAULT_NETWORK"
	EnvRegistryAddress = "SEMAPHORE_CONTRACT_ADDRESS"
	EnvGroupID         = "GROUP_ID"
	EnvStartBlock      = "SEMAPHORE_START_BLOCK"
)

const (
	keyNetwork         = "network"
	keyRegistryAddress = "registry_address"
	keyGroupID         = "group_id"
	keyStartBlock      = "start_block"
)

// Load builds a Config from v, binding the process environment keys above.
// Values already set on v (flags, config files, defaults) take the usual
// viper precedence over the environment. An unset group id stays nil.
func Load(v *viper.Viper) (Config, error) {
	bindings := map[string]string{
		keyNetwork:         EnvNetwork,
		keyRegistryAddress: EnvRegistryAddress,
		keyGroupID:         EnvGroupID,
		keyStartBlock:      EnvStartBlock,
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, err
		}
	}

	return Config{
		Network:         v.GetString(keyNetwork),
		RegistryAddress: v.GetString(keyRegistryAddress),
		GroupID:         v.Get(keyGroupID),
		StartBlock:      v.GetUint64(keyStartBlock),
	}, nil
}
