package cmd

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ServerFlags are the flags shared by commands that bind a listener.
type ServerFlags struct {
	Port int
	Host string
}

// addServerFlags registers --port/-p and --host on cmd and binds them to
// server.port and server.host so they override file and env values.
func addServerFlags(cmd *cobra.Command, v *viper.Viper) *ServerFlags {
	flags := &ServerFlags{}
	cmd.Flags().IntVarP(&flags.Port, "port", "p", 8088, "Port to serve on")
	cmd.Flags().StringVar(&flags.Host, "host", "127.0.0.1", "Host to bind to")

	AddFlagValidation(cmd, "port", ValidatePort)

	_ = v.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	_ = v.BindPFlag("server.host", cmd.Flags().Lookup("host"))
	return flags
}

// AddFlagValidation wraps a flag's value so invalid input is rejected while
// the command line is parsed.
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}
	flag.Value = &validatingValue{Value: flag.Value, validator: validator}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if err := v.validator(val); err != nil {
		return err
	}
	return v.Value.Set(val)
}

// ValidatePort accepts 0 (pick a free port) through 65535.
func ValidatePort(portStr string) error {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port number: %s", portStr)
	}
	if port < 0 || port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", port)
	}
	return nil
}

// validateFormat checks an --format value against the formats a command
// supports.
func validateFormat(format string, supported ...string) error {
	if slices.Contains(supported, format) {
		return nil
	}
	return fmt.Errorf("unsupported format: %s (supported: %s)", format, strings.Join(supported, ", "))
}
