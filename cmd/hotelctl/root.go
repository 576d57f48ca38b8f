package main

import (
	"time"

	"github.com/BearBump/HotelAssist/config"
	"github.com/BearBump/HotelAssist/internal/integrations/hotelapi"
	"github.com/BearBump/HotelAssist/internal/integrations/hotelapi/fake"
	"github.com/BearBump/HotelAssist/internal/integrations/hotelapi/httpapi"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	configPath string
	baseURL    string
	useFake    bool
	timeout    time.Duration
}

type clientFactory func(g *globalFlags) (hotelapi.Client, error)

// defaultClientFactory prefers explicit flags, then the config file, then the fake.
func defaultClientFactory(g *globalFlags) (hotelapi.Client, error) {
	if g.useFake {
		return fake.New(), nil
	}
	baseURL, timeout := g.baseURL, g.timeout
	if baseURL == "" && g.configPath != "" {
		cfg, err := config.LoadConfig(g.configPath)
		if err != nil {
			return nil, err
		}
		if cfg.HotelAPI.Mode == "fake" {
			return fake.New(), nil
		}
		baseURL = cfg.HotelAPI.BaseURL
		if cfg.HotelAPI.TimeoutSeconds > 0 {
			timeout = time.Duration(cfg.HotelAPI.TimeoutSeconds) * time.Second
		}
	}
	if baseURL == "" {
		return fake.New(), nil
	}
	return httpapi.New(baseURL, timeout), nil
}

func newRootCmd(newClient clientFactory) *cobra.Command {
	g := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:           "hotelctl",
		Short:         "Talk to the Hotel Booking API from a terminal",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file (hotelapi section is used)")
	rootCmd.PersistentFlags().StringVar(&g.baseURL, "base-url", "", "Hotel Booking API base URL")
	rootCmd.PersistentFlags().BoolVar(&g.useFake, "fake", false, "Use the in-process fake backend")
	rootCmd.PersistentFlags().DurationVar(&g.timeout, "timeout", 30*time.Second, "HTTP timeout per request")

	client := func() (hotelapi.Client, error) { return newClient(g) }

	rootCmd.AddCommand(queryCmd(client))
	rootCmd.AddCommand(orderCmd(client))
	rootCmd.AddCommand(notificationsCmd(client))

	return rootCmd
}
