package core

import (
	"strings"

	"cliniccore/pkg/domain"
)

// specializationEntry pairs a symptom keyword with the specialization that
// treats it. The slice is ordered: the first keyword matching a symptom wins,
// mirroring the lookup-table nature of the triage logic.
type specializationEntry struct {
	keyword        string
	specialization string
}

var symptomSpecializations = []specializationEntry{
	{"chest pain", "Cardiology"},
	{"heart attack", "Cardiology"},
	{"stroke", "Neurology"},
	{"unconscious", "Neurology"},
	{"abdominal pain", "General Medicine"},
	{"severe abdominal pain", "General Surgery"},
	{"abdominal bleeding", "General Surgery"},
	{"difficulty breathing", "Pulmonology"},
	{"severe bleeding", "Emergency Response"},
	{"severe allergic reaction", "General Medicine"},
	{"severe burns", "Emergency Response"},
}

// bidiMatch reports whether either string contains the other. Intentionally
// fuzzy: "bleeding" matches "severe bleeding" and vice versa.
func bidiMatch(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// matchSpecialization scans symptoms in order and returns the specialization
// of the first table entry matching any symptom.
func matchSpecialization(symptoms []string) (string, bool) {
	for _, symptom := range symptoms {
		s := strings.ToLower(strings.TrimSpace(symptom))
		if s == "" {
			continue
		}
		for _, entry := range symptomSpecializations {
			if bidiMatch(s, entry.keyword) {
				return entry.specialization, true
			}
		}
	}
	return "", false
}

// leastLoaded picks the doctor with the fewest rostered patients among those
// passing the filter. Ties break on doctor id ordering so selection is
// deterministic. Returns false when no doctor passes.
func leastLoaded(doctors []domain.Doctor, filter func(domain.Doctor) bool) (domain.Doctor, bool) {
	var best domain.Doctor
	found := false
	for _, d := range doctors {
		if filter != nil && !filter(d) {
			continue
		}
		if !found ||
			len(d.Patients) < len(best.Patients) ||
			(len(d.Patients) == len(best.Patients) && d.ID < best.ID) {
			best = d
			found = true
		}
	}
	return best, found
}

// chooseDoctor selects the doctor for a fresh registration: specialization
// match first, global least-loaded fallback, or none when no doctors exist.
func chooseDoctor(doctors []domain.Doctor, symptoms []string) (domain.Doctor, bool) {
	if len(doctors) == 0 {
		return domain.Doctor{}, false
	}
	if specialization, ok := matchSpecialization(symptoms); ok {
		if doctor, ok := leastLoaded(doctors, func(d domain.Doctor) bool {
			return strings.EqualFold(d.Specialization, specialization)
		}); ok {
			return doctor, true
		}
	}
	return leastLoaded(doctors, nil)
}

// chooseReplacement selects the doctor a patient moves to when its current
// doctor goes on leave: same specialization when possible, any available
// doctor otherwise. The departing doctor and doctors on leave are excluded.
func chooseReplacement(doctors []domain.Doctor, departing domain.Doctor) (domain.Doctor, bool) {
	sameSpecialization := func(d domain.Doctor) bool {
		return !d.OnLeave && d.ID != departing.ID &&
			strings.EqualFold(d.Specialization, departing.Specialization)
	}
	if doctor, ok := leastLoaded(doctors, sameSpecialization); ok {
		return doctor, true
	}
	available := func(d domain.Doctor) bool {
		return !d.OnLeave && d.ID != departing.ID
	}
	return leastLoaded(doctors, available)
}
