// internal/config/validate.go
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/karronoli/tiny-sato/internal/discovery"
)

var (
	validateOnce sync.Once
	structCheck  *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		// report yaml key names
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		// same rule discovery applies when resolving the printer
		_ = v.RegisterValidation("printer_mac", func(fl validator.FieldLevel) bool {
			_, err := discovery.ParseMAC(fl.Field().String())
			return err == nil
		})
		structCheck = v
	})
	return structCheck
}

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil")
	}

	// ------------------------------------------------------------
	// FIELD RULES (struct tags)
	// ------------------------------------------------------------

	if err := structValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %s (value %v)", trimRoot(fe.Namespace()), fe.Tag(), fe.Value()))
			}
			return errors.New("config: " + strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config: %w", err)
	}

	// ------------------------------------------------------------
	// PRINTER IDENTITY AND LOCATION
	// ------------------------------------------------------------

	seen := make(map[string]struct{})
	for _, p := range cfg.Printers {
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("printer %q: duplicate id", p.ID)
		}
		seen[p.ID] = struct{}{}

		n := 0
		for _, v := range []string{p.Endpoint, p.MAC, p.Serial, p.File} {
			if v != "" {
				n++
			}
		}
		if n != 1 {
			return fmt.Errorf("printer %q: exactly one of endpoint, mac, serial, file is required", p.ID)
		}
	}

	// ------------------------------------------------------------
	// HEALTH MIRROR VALIDATION (PER-PRINTER, OPT-IN)
	// ------------------------------------------------------------

	// key = endpoint | unit_id | status_slot
	slotOwner := make(map[string]string)

	for _, p := range cfg.Printers {
		// mirror is opt-in
		if p.StatusSlot == nil {
			continue
		}

		if !p.Network() {
			return fmt.Errorf("printer %q: status_slot requires a network printer", p.ID)
		}
		if cfg.Mirror.Endpoint == "" {
			return fmt.Errorf("printer %q: status_slot is set but mirror.endpoint is empty", p.ID)
		}

		key := fmt.Sprintf("%s|%d|%d", cfg.Mirror.Endpoint, cfg.Mirror.UnitID, *p.StatusSlot)
		if prev, exists := slotOwner[key]; exists {
			return fmt.Errorf(
				"status_slot collision: endpoint=%s unit_id=%d slot=%d used by printers %q and %q",
				cfg.Mirror.Endpoint,
				cfg.Mirror.UnitID,
				*p.StatusSlot,
				prev,
				p.ID,
			)
		}
		slotOwner[key] = p.ID
	}

	return nil
}

func trimRoot(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
