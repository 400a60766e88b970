package main

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/TEENet-io/bridge-validator/bridge"
	"github.com/TEENet-io/bridge-validator/chaintxmgr"
	"github.com/TEENet-io/bridge-validator/cmd"
	"github.com/TEENet-io/bridge-validator/ethsync"
	"github.com/TEENet-io/bridge-validator/logconfig"
	"github.com/TEENet-io/bridge-validator/metadata"
)

const (
	ENV_CONFIG_FILE_PATH = "BRIDGE_VALIDATOR_CONFIG"
)

func main() {
	// Tool to read environment variables
	viper.AutomaticEnv()
	setDefaults()

	// The configuration file is optional, env vars alone are enough.
	_config_file := viper.GetString(ENV_CONFIG_FILE_PATH)
	if _config_file != "" {
		fmt.Printf("Bridge validator configuration file = %s\n", _config_file)
		if !cmd.FileExists(_config_file) {
			fmt.Printf("Bridge validator configuration file not found: %s\n", _config_file)
			os.Exit(1)
		}
		if !initializeViper(_config_file) {
			os.Exit(1)
		}
	}

	if err := logconfig.ConfigLogger(viper.GetString("LOG_LEVEL")); err != nil {
		fmt.Printf("Error configuring logger: %s\n", err)
		os.Exit(1)
	}

	// Make the configuration
	vc := PrepareValidatorConfig()
	if err := vc.Validate(); err != nil {
		fmt.Printf("Error loading bridge validator configuration: %s\n", err)
		os.Exit(1)
	}

	fmt.Println("Starting bridge validator... press Ctrl+C to stop it")
	// Start validator and block.
	cmd.StartValidatorAndWait(vc)
}

func setDefaults() {
	viper.SetDefault("NATIVE_NAME", cmd.DefaultNativeName)
	viper.SetDefault("RECEIVER_NAME", cmd.DefaultReceiverName)
	viper.SetDefault("CONFIRMATIONS", bridge.DefaultConfirmations)
	viper.SetDefault("SUBMIT_CONFIRMATIONS", chaintxmgr.DefaultConfirmations)
	viper.SetDefault("POLL_INTERVAL", cmd.DefaultPollInterval)
	viper.SetDefault("START_BLOCK", ethsync.StartFromHead)
	viper.SetDefault("METADATA_URL", metadata.DefaultBaseURL)
	viper.SetDefault("HTTP_IP", cmd.DefaultHttpIp)
	viper.SetDefault("PORT", cmd.DefaultHttpPort)
	viper.SetDefault("HANDLER_TIMEOUT", 0)
	viper.SetDefault("LOG_LEVEL", "info")
}

func initializeViper(filePath string) bool {
	viper.SetConfigFile(filePath)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf("Error reading configuration file, %s\n", err)
		return false
	}
	return true
}

// PrepareValidatorConfig reads configuration variables and returns a ValidatorConfig.
func PrepareValidatorConfig() *cmd.ValidatorConfig {
	return &cmd.ValidatorConfig{
		// native side
		NativeName:         viper.GetString("NATIVE_NAME"),
		NativeRpcUrl:       viper.GetString("NATIVE_RPC"),
		NativeContractAddr: viper.GetString("NATIVE_CONTRACT"),
		NativeSecret:       viper.GetString("NATIVE_SECRET"),
		// receiver side
		ReceiverName:         viper.GetString("RECEIVER_NAME"),
		ReceiverRpcUrl:       viper.GetString("RECEIVER_RPC"),
		ReceiverContractAddr: viper.GetString("RECEIVER_CONTRACT"),
		ReceiverSecret:       viper.GetString("RECEIVER_SECRET"),
		CallbackSecret:       viper.GetString("CALLBACK_SECRET"),
		// protocol
		Confirmations:       viper.GetUint64("CONFIRMATIONS"),
		SubmitConfirmations: viper.GetUint64("SUBMIT_CONFIRMATIONS"),
		HandlerTimeout:      viper.GetDuration("HANDLER_TIMEOUT"),
		PollInterval:        viper.GetDuration("POLL_INTERVAL"),
		StartBlock:          viper.GetInt64("START_BLOCK"),
		MetadataUrl:         viper.GetString("METADATA_URL"),
		// journal side
		DbFilePath: viper.GetString("DB_FILE_PATH"),
		// Http side
		HttpIp:   viper.GetString("HTTP_IP"),
		HttpPort: viper.GetString("PORT"),
	}
}
