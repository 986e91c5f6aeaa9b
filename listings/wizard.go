package listings

import (
	"errors"
	"strings"
)

const (
	StepBasics   = 1
	StepDetails  = 2
	StepLocation = 3
	StepReview   = 4
)

var ErrIncomplete = errors.New("listing has errors in one or more steps")

// Wizard walks an owner through a listing submission. Each step validates
// only its own fields; Submit revalidates everything.
type Wizard struct {
	Draft  NewListing
	step   int
	errors map[string]string
}

func NewWizard() *Wizard {
	return &Wizard{step: StepBasics, errors: map[string]string{}}
}

func (w *Wizard) Step() int {
	return w.step
}

// Errors returns the field messages from the last validation.
func (w *Wizard) Errors() map[string]string {
	out := make(map[string]string, len(w.errors))
	for k, v := range w.errors {
		out[k] = v
	}
	return out
}

// Next advances when the current step is valid.
func (w *Wizard) Next() bool {
	if w.step >= StepReview {
		return false
	}
	w.errors = validateStep(w.Draft, w.step)
	if len(w.errors) > 0 {
		return false
	}
	w.step++
	return true
}

func (w *Wizard) Back() {
	if w.step > StepBasics {
		w.step--
	}
}

// Submit checks all steps. On failure the wizard returns to the first step
// and the returned error is ErrIncomplete.
func (w *Wizard) Submit() (NewListing, error) {
	all := map[string]string{}
	for step := StepBasics; step <= StepLocation; step++ {
		for k, v := range validateStep(w.Draft, step) {
			all[k] = v
		}
	}
	w.errors = all
	if len(all) > 0 {
		w.step = StepBasics
		return NewListing{}, ErrIncomplete
	}
	return w.Draft, nil
}

func validateStep(draft NewListing, step int) map[string]string {
	errs := map[string]string{}
	switch step {
	case StepBasics:
		if strings.TrimSpace(draft.Name) == "" {
			errs["name"] = "Box name is required"
		}
		if strings.TrimSpace(draft.Description) == "" {
			errs["description"] = "Description is required"
		}
	case StepDetails:
		if len(draft.Sports) == 0 {
			errs["sports"] = "Select at least one sport"
		}
		if draft.Price <= 0 {
			errs["price"] = "A valid price is required"
		}
		if draft.Capacity <= 0 {
			errs["capacity"] = "A valid capacity is required"
		}
	case StepLocation:
		if strings.TrimSpace(draft.Location) == "" {
			errs["location"] = "Location is required"
		}
		if len(draft.Amenities) == 0 {
			errs["amenities"] = "Select at least one amenity"
		}
		if len(draft.Images) == 0 {
			errs["images"] = "Please upload at least one image for your facility."
		}
	}
	return errs
}
