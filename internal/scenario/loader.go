package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var (
	errDuplicateScenario   = errors.New("duplicate scenario name")
	errFaultBothMechanisms = errors.New("fault sets both signal and component")
	errReactionMissing     = errors.New("reaction scenario missing reaction block")
	errActionMissingSignal = errors.New("set/pulse action requires a signal")
	errActionMissingWait   = errors.New("wait action requires a duration")
	errEmptyDocument       = errors.New("suite document is empty")
)

const defaultEnableParam = "enabled"

// Loader loads suite definition files.
type Loader interface {
	Load(path string) (*Suite, error)
	Parse(data []byte) (*Suite, error)
}

type loader struct {
	log      logrus.FieldLogger
	validate *validator.Validate
}

// NewLoader creates a new suite loader.
func NewLoader(log logrus.FieldLogger) Loader {
	return &loader{
		log:      log.WithField("component", "suite_loader"),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Load reads, defaults and validates the suite at path.
func (l *loader) Load(path string) (*Suite, error) {
	l.log.WithField("path", path).Debug("loading suite definition")

	data, err := os.ReadFile(path) //nolint:gosec // G304: suite path is operator supplied
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	suite, err := l.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading suite from %s: %w", path, err)
	}

	return suite, nil
}

// Parse decodes a suite document. Unknown keys are rejected.
func (l *loader) Parse(data []byte) (*Suite, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errEmptyDocument
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var suite Suite
	if err := dec.Decode(&suite); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}

	applyDefaults(&suite)

	if err := l.validateSuite(&suite); err != nil {
		return nil, fmt.Errorf("validating suite: %w", err)
	}

	l.warnUnbound(&suite)

	return &suite, nil
}

func applyDefaults(s *Suite) {
	def := DefaultTiming()
	fill := func(v *time.Duration, d time.Duration) {
		if *v == 0 {
			*v = d
		}
	}

	fill(&s.Timing.Prefault, def.Prefault)
	fill(&s.Timing.FaultDuration, def.FaultDuration)
	fill(&s.Timing.Postfault, def.Postfault)
	fill(&s.Timing.ExpectPickup, def.ExpectPickup)
	fill(&s.Timing.ExpectTrip, def.ExpectTrip)
	fill(&s.Timing.StabilityWindow, def.StabilityWindow)
	fill(&s.Timing.PollInterval, def.PollInterval)
	fill(&s.Timing.MinPollWindow, def.MinPollWindow)
	fill(&s.Timing.ArmSettle, def.ArmSettle)

	if s.Capture.RateHz == 0 {
		s.Capture.RateHz = 1000
	}

	for id, fc := range s.Faults {
		if fc.Component != nil && fc.Component.EnableParam == "" {
			fc.Component.EnableParam = defaultEnableParam
			s.Faults[id] = fc
		}
	}

	for i := range s.Scenarios {
		r := s.Scenarios[i].Reaction
		if r == nil {
			continue
		}
		if r.Level == 0 {
			r.Level = 0.5
		}
		if r.Window == 0 {
			r.Window = s.Timing.FaultDuration + s.Timing.Postfault
		}
		if r.MaxReaction == 0 {
			r.MaxReaction = s.Timing.ExpectTrip
		}
	}
}

// validateSuite runs struct tag validation then cross-field checks.
func (l *loader) validateSuite(s *Suite) error {
	if err := l.validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return describeValidation(verrs)
		}
		return err
	}

	seen := make(map[string]struct{}, len(s.Scenarios))
	for _, sc := range s.Scenarios {
		if _, dup := seen[sc.Name]; dup {
			return fmt.Errorf("%w: %s", errDuplicateScenario, sc.Name)
		}
		seen[sc.Name] = struct{}{}

		if sc.Kind == KindReaction && sc.Reaction == nil {
			return fmt.Errorf("%w: %s", errReactionMissing, sc.Name)
		}

		for i, a := range sc.Setup {
			switch a.Action {
			case ActionSet, ActionPulse:
				if a.Signal == "" {
					return fmt.Errorf("scenario %s setup[%d]: %w", sc.Name, i, errActionMissingSignal)
				}
			case ActionWait:
				if a.Duration <= 0 {
					return fmt.Errorf("scenario %s setup[%d]: %w", sc.Name, i, errActionMissingWait)
				}
			}
		}
	}

	for id, fc := range s.Faults {
		if fc.Signal != "" && fc.Component != nil {
			return fmt.Errorf("%w: %s", errFaultBothMechanisms, id)
		}
	}

	return nil
}

// warnUnbound logs scenarios whose fault has no mechanism. These are reported
// as configuration errors when the scenario runs rather than rejected here.
func (l *loader) warnUnbound(s *Suite) {
	for _, sc := range s.Scenarios {
		fc, ok := s.Faults[sc.Fault]
		if ok && (fc.Signal != "" || fc.Component != nil) {
			continue
		}

		l.log.WithFields(logrus.Fields{
			"scenario": sc.Name,
			"fault":    sc.Fault,
		}).Warn("no fault control configured, scenario will fail")
	}
}

func describeValidation(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Suite.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
	}

	return fmt.Errorf("%s", strings.Join(msgs, "; ")) //nolint:err113 // aggregated validator messages
}
