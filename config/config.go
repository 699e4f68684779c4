// Package config loads the checker daemon's configuration with spf13/viper,
// following the same search-path and defaulting discipline as SeaweedFS's
// weed/util/config.go (config name "recycler", looked up in the working
// directory, $HOME/.vaultcheck, and /etc/vaultcheck/).
package config

import (
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/objvault/vaultcheck/glog"
)

const configName = "recycler"

// Options is the immutable snapshot of recognized configuration, read once
// by Load and copied into the daemon by recycler.NewDaemon. Reloading mid-run
// is not supported.
type Options struct {
	PDEndpoints                []string
	ScanInstancesIntervalSec   int
	RecycleConcurrency         int
	RecycleJobLeaseExpiredMs   int64
	CheckObjectIntervalSec     int64
	ReservedBufferDays         int64
	RecycleWhitelist           []string
	RecycleBlacklist           []string
	EnableInvertedCheck        bool
	BrpcListenPort             int
	MetricsListenPort          int
}

func defaults(v *viper.Viper) {
	v.SetDefault("recycle.pd_endpoints", []string{"127.0.0.1:2379"})
	v.SetDefault("recycle.scan_instances_interval_seconds", 60)
	v.SetDefault("recycle.recycle_concurrency", 8)
	v.SetDefault("recycle.recycle_job_lease_expired_ms", 60000)
	v.SetDefault("recycle.check_object_interval_seconds", 300)
	v.SetDefault("recycle.reserved_buffer_days", 3)
	v.SetDefault("recycle.recycle_whitelist", []string{})
	v.SetDefault("recycle.recycle_blacklist", []string{})
	v.SetDefault("recycle.enable_inverted_check", false)
	v.SetDefault("recycle.brpc_listen_port", 9320)
	v.SetDefault("recycle.metrics_listen_port", 9327)
}

var (
	once sync.Once
	vp   *viper.Viper
)

// Viper returns the process-wide viper instance, configured with the search
// path discipline (cwd, $HOME, /etc), set up exactly once.
func Viper() *viper.Viper {
	once.Do(func() {
		vp = viper.New()
		defaults(vp)
		vp.SetConfigName(configName)
		vp.AddConfigPath(".")
		vp.AddConfigPath("$HOME/.vaultcheck")
		vp.AddConfigPath("/etc/vaultcheck/")
		vp.AutomaticEnv()
		vp.SetEnvPrefix("vaultcheck")
		vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	})
	return vp
}

// Load reads recycler.toml from the search path if present. A missing file is
// not an error — defaults apply — matching weed/util/config.go's non-required path.
func Load() (*Options, error) {
	v := Viper()
	if err := v.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			glog.V(1).Infof("no %s.toml found on search path, using defaults", configName)
		} else {
			return nil, err
		}
	} else {
		glog.V(1).Infof("loaded configuration from %s", v.ConfigFileUsed())
	}

	return &Options{
		PDEndpoints:              v.GetStringSlice("recycle.pd_endpoints"),
		ScanInstancesIntervalSec: v.GetInt("recycle.scan_instances_interval_seconds"),
		RecycleConcurrency:       v.GetInt("recycle.recycle_concurrency"),
		RecycleJobLeaseExpiredMs: v.GetInt64("recycle.recycle_job_lease_expired_ms"),
		CheckObjectIntervalSec:   v.GetInt64("recycle.check_object_interval_seconds"),
		ReservedBufferDays:       v.GetInt64("recycle.reserved_buffer_days"),
		RecycleWhitelist:         v.GetStringSlice("recycle.recycle_whitelist"),
		RecycleBlacklist:         v.GetStringSlice("recycle.recycle_blacklist"),
		EnableInvertedCheck:      v.GetBool("recycle.enable_inverted_check"),
		BrpcListenPort:           v.GetInt("recycle.brpc_listen_port"),
		MetricsListenPort:        v.GetInt("recycle.metrics_listen_port"),
	}, nil
}
