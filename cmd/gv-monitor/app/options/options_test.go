package options

import (
	"strings"
	"testing"

	pkgoptions "github.com/guardvision/guardvision/pkg/options"
)

func TestDefaultsValidate(t *testing.T) {
	o := NewMonitorOptions()
	if err := o.Complete(); err != nil {
		t.Fatal(err)
	}
	if err := o.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if !strings.HasPrefix(o.MqttOptions.ClientID, "gv-monitor-") {
		t.Errorf("client id = %q", o.MqttOptions.ClientID)
	}
}

func TestValidateAggregatesErrors(t *testing.T) {
	o := NewMonitorOptions()
	o.StoreOptions.Backend = "redis"
	o.AuthOptions.Mode = pkgoptions.AuthModeStatic
	o.RenderOptions.TimeZone = "Mars/Olympus_Mons"

	err := o.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"store.backend", "auth.users", "render.time-zone"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestFlagsCoverEverySection(t *testing.T) {
	fss := NewMonitorOptions().Flags()
	for _, name := range []string{"mqtt", "store", "auth", "http", "grpc", "s3", "render", "log"} {
		if fs, ok := fss.FlagSets[name]; !ok || !fs.HasFlags() {
			t.Errorf("flag set %q missing", name)
		}
	}
}

func TestConfigCarriesOptions(t *testing.T) {
	o := NewMonitorOptions()
	cfg, err := o.Config()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.StoreOptions != o.StoreOptions || cfg.RenderOptions != o.RenderOptions {
		t.Error("config does not share the option structs")
	}
}
