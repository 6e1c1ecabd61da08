package provider

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/beroca11/video-orchestrator/config"
	"github.com/beroca11/video-orchestrator/media"
)

type fakeBackend struct {
	healthErr error
	cap       Capabilities
}

func (f *fakeBackend) GenerateSegments(context.Context, SegmentRequest) ([]media.VideoSegment, error) {
	return nil, nil
}
func (f *fakeBackend) Healthcheck() error         { return f.healthErr }
func (f *fakeBackend) Capabilities() Capabilities { return f.cap }

func getFactory(factoryErr, healthErr error, cap Capabilities) Factory {
	return func(*config.Config) (VideoBackend, error) {
		if factoryErr != nil {
			return nil, factoryErr
		}
		return &fakeBackend{healthErr: healthErr, cap: cap}, nil
	}
}

func TestListBackends(t *testing.T) {
	cap := Capabilities{
		Resolutions:   []string{"720p", "1080p"},
		MaxClipLength: 10,
		Audio:         true,
	}
	backends = map[string]Factory{
		"cap-and-unhealthy": getFactory(nil, errors.New("api is down"), cap),
		"factory-err":       getFactory(errors.New("invalid config"), nil, cap),
		"cap-and-healthy":   getFactory(nil, nil, cap),
	}
	expected := []string{"cap-and-healthy", "cap-and-unhealthy"}
	got := List(&config.Config{})
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("List: want %#v. Got %#v", expected, got)
	}
}

func TestListBackendsEmpty(t *testing.T) {
	backends = nil
	names := List(&config.Config{})
	if len(names) != 0 {
		t.Errorf("Unexpected non-empty backend list: %#v", names)
	}
}

func TestDescribe(t *testing.T) {
	cap := Capabilities{
		Resolutions:   []string{"720p", "1080p"},
		MaxClipLength: 10,
		Audio:         true,
	}
	backends = map[string]Factory{
		"cap-and-unhealthy": getFactory(nil, errors.New("api is down"), cap),
		"factory-err":       getFactory(errors.New("invalid config"), nil, cap),
		"cap-and-healthy":   getFactory(nil, nil, cap),
	}
	var tests = []struct {
		input    string
		expected Description
	}{
		{
			"factory-err",
			Description{Name: "factory-err", Enabled: false},
		},
		{
			"cap-and-healthy",
			Description{
				Name:         "cap-and-healthy",
				Capabilities: cap,
				Health:       Health{OK: true},
				Enabled:      true,
			},
		},
		{
			"cap-and-unhealthy",
			Description{
				Name:         "cap-and-unhealthy",
				Capabilities: cap,
				Health:       Health{OK: false, Message: "api is down"},
				Enabled:      true,
			},
		},
	}
	for _, test := range tests {
		desc, err := Describe(test.input, &config.Config{})
		if err != nil {
			t.Error(err)
		}
		if !reflect.DeepEqual(*desc, test.expected) {
			t.Errorf("Describe(%q): want %#v. Got %#v", test.input, test.expected, *desc)
		}
	}

	description, err := Describe("anything", nil)
	if err != ErrNotFound {
		t.Errorf("Wrong error. Want %#v. Got %#v", ErrNotFound, err)
	}
	if description != nil {
		t.Errorf("Unexpected non-nil description: %#v", description)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	backends = map[string]Factory{}
	if err := Register("dup", getFactory(nil, nil, Capabilities{})); err != nil {
		t.Fatal(err)
	}
	if err := Register("dup", getFactory(nil, nil, Capabilities{})); err != ErrRegistered {
		t.Errorf("Register() error = %v, want ErrRegistered", err)
	}
}
