package mqtt

import "testing"

func TestTopicsMatch(t *testing.T) {
	tests := []struct {
		filter, topic string
		want          bool
	}{
		{"latest_faces/3", "latest_faces/3", true},
		{"latest_faces/+", "latest_faces/3", true},
		{"latest_faces/+", "latest_faces", false},
		{"latest_faces/+", "latest_faces/3/extra", false},
		{"latest_faces/#", "latest_faces/3/extra", true},
		{"latest_faces/3", "latest_faces/4", false},
		{"+/3", "latest_faces/3", true},
	}

	for _, tt := range tests {
		if got := topicsMatch(tt.filter, tt.topic); got != tt.want {
			t.Errorf("topicsMatch(%q, %q) = %v, want %v", tt.filter, tt.topic, got, tt.want)
		}
	}
}

func TestTopicFilterStripsSharePrefix(t *testing.T) {
	if got := topicFilter("$share/monitors/latest_faces/+"); got != "latest_faces/+" {
		t.Errorf("got %q", got)
	}
	if got := topicFilter("latest_faces/+"); got != "latest_faces/+" {
		t.Errorf("got %q", got)
	}
}

func TestClientConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ClientConfig
		wantErr bool
	}{
		{"valid", ClientConfig{BrokerURL: "tcp://localhost:1883", ClientID: "gv"}, false},
		{"missing broker", ClientConfig{ClientID: "gv"}, true},
		{"bad scheme", ClientConfig{BrokerURL: "http://localhost", ClientID: "gv"}, true},
		{"missing client id", ClientConfig{BrokerURL: "tcp://localhost:1883"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewClientAppliesDefaults(t *testing.T) {
	cfg := &ClientConfig{BrokerURL: "tcp://localhost:1883", ClientID: "gv"}
	if _, err := NewClient(cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.KeepAlive != 60 || cfg.ConnectTimeout == 0 || cfg.ReconnectBackoff == 0 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}
