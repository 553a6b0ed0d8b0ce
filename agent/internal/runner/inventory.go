package runner

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/teamalert/teamalert/agent/internal/alert"
	"github.com/teamalert/teamalert/agent/internal/config"
	"github.com/teamalert/teamalert/agent/internal/jenkins"
	"github.com/teamalert/teamalert/agent/internal/light"
	"github.com/teamalert/teamalert/agent/internal/light/hue"
)

// Inventory is what a reload builds alerts from.
type Inventory struct {
	Lights []light.Light
	Jobs   []alert.JobInventory

	// Reachability, when set, is called after every tick to report lights
	// that came into or went out of range.
	Reachability func(ctx context.Context) error
}

// Discoverer builds the live inventory described by cfg.
type Discoverer func(ctx context.Context, cfg *config.Config) (Inventory, error)

// Discover returns the default Discoverer: lights from the Hue bridge and the
// configured virtual lights, jobs from every Jenkins server. Virtual lights
// with debug enabled print their changes to out.
func Discover(out io.Writer) Discoverer {
	return func(ctx context.Context, cfg *config.Config) (Inventory, error) {
		var inv Inventory

		if cfg.Hue.Bridge != "" {
			username := cfg.Hue.Username()
			if username == "" {
				return Inventory{}, errors.New("hue: bridge is set but username_env is empty or unset")
			}
			bridge := hue.New(cfg.Hue.Bridge, username)
			hl, err := bridge.Lights(ctx)
			if err != nil {
				return Inventory{}, fmt.Errorf("hue %s: %w", cfg.Hue.Bridge, err)
			}
			for _, l := range hl {
				inv.Lights = append(inv.Lights, l)
			}
			inv.Reachability = bridge.ReportReachability
		}

		for _, vl := range cfg.VirtualLights {
			var w io.Writer
			if vl.Debug {
				w = out
			}
			inv.Lights = append(inv.Lights, light.NewVirtual(vl.Name, w))
		}

		for _, jc := range cfg.Jenkins {
			s := jenkins.New(jc)
			if err := s.Discover(ctx); err != nil {
				return Inventory{}, err
			}
			inv.Jobs = append(inv.Jobs, s)
		}
		return inv, nil
	}
}
