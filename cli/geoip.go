package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Marcosotoladev/DhermicaApp-sub000/config"
	"github.com/Marcosotoladev/DhermicaApp-sub000/util"
	"github.com/spf13/cobra"
)

var (
	geoipURL  string
	geoipDest string
)

var geoipUpdateCmd = &cobra.Command{
	Use:   "geoip-update",
	Short: "Download the GeoIP database used by the security log",
	RunE: func(cmd *cobra.Command, args []string) error {
		config.LoadConfig()
		req, err := geoipRequest(geoipURL, geoipDest)
		if err != nil {
			return err
		}
		path, err := updateGeoIP(cmd.Context(), req)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "geoip database written to %s\n", path)
		return nil
	},
}

func init() {
	geoipUpdateCmd.Flags().StringVar(&geoipURL, "url", "", "MMDB download URL (default $GEOIP_DB_URL)")
	geoipUpdateCmd.Flags().StringVar(&geoipDest, "dest", "", "Destination path (default $GEOIP_DB_PATH)")
}

// geoipRequest fills missing flags from GEOIP_DB_URL and GEOIP_DB_PATH.
func geoipRequest(url, dest string) (util.DownloadRequest, error) {
	if url == "" {
		url = os.Getenv("GEOIP_DB_URL")
	}
	if dest == "" {
		dest = os.Getenv("GEOIP_DB_PATH")
	}
	if url == "" || dest == "" {
		return util.DownloadRequest{}, errors.New("geoip url and destination are required")
	}
	return util.DownloadRequest{URL: url, DestPath: dest, Timeout: 2 * time.Minute}, nil
}

// updateGeoIP downloads the database and checks that it opens.
func updateGeoIP(ctx context.Context, req util.DownloadRequest) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	path, err := util.DownloadGeoIPWithRequest(ctx, req)
	if err != nil {
		return "", fmt.Errorf("download geoip: %w", err)
	}
	if err := util.ValidateGeoIP(path); err != nil {
		return "", fmt.Errorf("validate geoip: %w", err)
	}
	return path, nil
}
