// Package device derives and persists a stable per-client device identity
// and renders the descriptive device profile string used for server-side
// auditing.
package device

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/google/uuid"

	"github.com/darelisme/monauth/store"
)

// unknownProfile is the degraded profile string used when environment
// inspection fails. Auditing must never block authentication.
const unknownProfile = "Client: Unknown, Device: Unknown, ClientVersion: Unknown"

// Info describes the client environment as seen by an [Environment].
type Info struct {
	Client        string
	ClientVersion string
	OS            string
}

// Environment inspects the host the client is running on.
type Environment interface {
	Inspect() (Info, error)
}

// HostEnvironment is the default [Environment] for native Go hosts.
type HostEnvironment struct{}

// Inspect reports the Go client identity and a readable OS name.
func (HostEnvironment) Inspect() (Info, error) {
	return Info{
		Client:        "Monobar Go",
		ClientVersion: strings.TrimPrefix(runtime.Version(), "go"),
		OS:            osName(),
	}, nil
}

func osName() string {
	switch runtime.GOOS {
	case "darwin":
		return "macOS"
	case "windows":
		return "Windows"
	case "linux":
		return "Linux"
	case "android":
		return "Android"
	case "ios":
		return "iOS"
	default:
		return runtime.GOOS
	}
}

// Identification is the name/id pair registered with the media server for a
// new playback device.
type Identification struct {
	Name string
	ID   string
}

// Provider owns the device identity for one client installation.
type Provider struct {
	cookies    store.Store
	env        Environment
	appVersion string
}

// NewProvider creates a device identity provider. env may be nil, in which
// case [HostEnvironment] is used.
func NewProvider(cookies store.Store, env Environment, appVersion string) *Provider {
	if env == nil {
		env = HostEnvironment{}
	}
	return &Provider{cookies: cookies, env: env, appVersion: appVersion}
}

// GetOrCreateDeviceID returns the persisted device id, generating and
// persisting a fresh one on first use. The id is stable across primary
// re-authentication and is only regenerated if explicitly cleared.
func (p *Provider) GetOrCreateDeviceID(ctx context.Context) (string, error) {
	existing, ok, err := p.cookies.Get(ctx, store.KeyDeviceID)
	if err != nil {
		return "", err
	}
	if ok && existing != "" {
		return existing, nil
	}

	id := uuid.NewString()
	if err := p.cookies.Set(ctx, store.KeyDeviceID, id, store.WithPath("/")); err != nil {
		return "", err
	}
	return id, nil
}

// ProfileHeader renders the X-Device-Profile auditing string. Inspection
// failure degrades to a fixed "Unknown" placeholder instead of an error.
func (p *Provider) ProfileHeader() string {
	info, err := p.env.Inspect()
	if err != nil {
		return unknownProfile
	}
	return fmt.Sprintf("Client: %s %s, Device: %s, ClientVersion: %s",
		info.Client, info.ClientVersion, info.OS, p.appVersion)
}

// Identification returns the display name and a short random id for
// registering this installation as a playback device.
func (p *Provider) Identification() Identification {
	client := "Unknown"
	if info, err := p.env.Inspect(); err == nil {
		client = info.Client
	}
	short := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return Identification{
		Name: fmt.Sprintf("Monobar (%s)", client),
		ID:   "monobar-" + short,
	}
}
