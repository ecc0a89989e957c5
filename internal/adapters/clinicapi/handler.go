// Package clinicapi exposes the clinic service over HTTP. Responses use a
// uniform envelope: {"success": true, "data": ...} on the happy path and
// {"success": false, "error": ...} on failures.
package clinicapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"cliniccore/internal/core"
	"cliniccore/pkg/domain"
)

// Handler provides HTTP access to patient registration, treatment, discharge,
// doctor management, and clinic statistics.
type Handler struct {
	Service *core.Service
}

// NewHandler constructs the clinic HTTP handler.
func NewHandler(svc *core.Service) *Handler {
	return &Handler{Service: svc}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		writeError(w, http.StatusInternalServerError, "clinic service not configured")
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == "/api/v1/doctors":
		h.handleDoctors(w, r)
	case path == "/api/v1/patients":
		h.handlePatients(w, r)
	case path == "/api/v1/treatments":
		h.handleTreatments(w, r)
	case path == "/api/v1/statistics":
		h.handleStatistics(w, r)
	case strings.HasPrefix(path, "/api/v1/patients/"):
		h.handlePatientSubtree(w, r, strings.TrimPrefix(path, "/api/v1/patients/"))
	case strings.HasPrefix(path, "/api/v1/doctors/"):
		h.handleDoctorSubtree(w, r, strings.TrimPrefix(path, "/api/v1/doctors/"))
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

type registerDoctorRequest struct {
	Name           string `json:"name"`
	Specialization string `json:"specialization"`
}

func (h *Handler) handleDoctors(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		doctors := h.Service.ListDoctors()
		writeData(w, http.StatusOK, map[string]any{"doctors": doctors, "count": len(doctors)})
	case http.MethodPost:
		var req registerDoctorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		doctor, _, err := h.Service.RegisterDoctor(r.Context(), req.Name, req.Specialization)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeData(w, http.StatusCreated, map[string]any{"doctor": doctor})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type registerPatientRequest struct {
	Name      string   `json:"name"`
	Age       int      `json:"age"`
	Gender    string   `json:"gender"`
	Symptoms  []string `json:"symptoms"`
	Condition string   `json:"condition"`
}

func (h *Handler) handlePatients(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		patients := h.Service.ListPatients()
		views := make([]patientView, 0, len(patients))
		for _, p := range patients {
			views = append(views, h.patientView(p))
		}
		writeData(w, http.StatusOK, map[string]any{"patients": views, "count": len(views)})
	case http.MethodPost:
		var req registerPatientRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		outcome, res, err := h.Service.RegisterPatient(r.Context(), core.RegisterPatientInput{
			Name:      req.Name,
			Age:       req.Age,
			Gender:    req.Gender,
			Symptoms:  req.Symptoms,
			Condition: req.Condition,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		payload := map[string]any{
			"patient": h.patientView(outcome.Patient),
			"message": outcome.Message,
		}
		if outcome.Doctor != nil {
			payload["doctor"] = outcome.Doctor
		}
		if len(res.Violations) > 0 {
			payload["violations"] = res.Violations
		}
		writeData(w, http.StatusCreated, payload)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type treatmentRequest struct {
	PatientID string  `json:"patient_id"`
	Note      string  `json:"note"`
	Treatment string  `json:"treatment"`
	Cost      float64 `json:"cost"`
	Discharge bool    `json:"discharge"`
}

func (h *Handler) handleTreatments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req treatmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	patient, _, err := h.Service.RecordTreatment(r.Context(), core.TreatmentInput{
		PatientID: req.PatientID,
		Note:      req.Note,
		Treatment: req.Treatment,
		Cost:      req.Cost,
		Discharge: req.Discharge,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"patient": h.patientView(patient)})
}

type dischargeRequest struct {
	Bill *float64 `json:"bill"`
}

func (h *Handler) handlePatientSubtree(w http.ResponseWriter, r *http.Request, remainder string) {
	segments := strings.Split(remainder, "/")
	switch {
	case len(segments) == 1:
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		patient, ok := h.Service.GetPatient(segments[0])
		if !ok {
			writeError(w, http.StatusNotFound, "patient not found")
			return
		}
		writeData(w, http.StatusOK, map[string]any{"patient": h.patientView(patient)})
	case len(segments) == 2 && segments[1] == "discharge":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req dischargeRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid JSON body")
				return
			}
		}
		patient, _, err := h.Service.DischargePatient(r.Context(), segments[0], req.Bill)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"patient": h.patientView(patient)})
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) handleDoctorSubtree(w http.ResponseWriter, r *http.Request, remainder string) {
	segments := strings.Split(remainder, "/")
	switch {
	case len(segments) == 1:
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		doctor, ok := h.Service.GetDoctor(segments[0])
		if !ok {
			writeError(w, http.StatusNotFound, "doctor not found")
			return
		}
		writeData(w, http.StatusOK, map[string]any{"doctor": doctor})
	case len(segments) == 2 && segments[1] == "leave":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		outcome, res, err := h.Service.MarkDoctorOnLeave(r.Context(), segments[0])
		if err != nil {
			writeServiceError(w, err)
			return
		}
		payload := map[string]any{
			"doctor":     outcome.Doctor,
			"reassigned": outcome.Reassigned,
			"unassigned": outcome.Unassigned,
		}
		if len(res.Violations) > 0 {
			payload["violations"] = res.Violations
		}
		writeData(w, http.StatusOK, payload)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	stats, err := h.Service.Statistics(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"statistics": stats})
}

// patientView embeds the patient record and resolves the assigned doctor's
// display name alongside the id.
type patientView struct {
	domain.Patient
	AssignedDoctor string `json:"assigned_doctor,omitempty"`
}

func (h *Handler) patientView(p domain.Patient) patientView {
	view := patientView{Patient: p}
	if p.AssignedDoctorID != nil {
		if doctor, ok := h.Service.GetDoctor(*p.AssignedDoctorID); ok {
			view.AssignedDoctor = doctor.Name
		}
	}
	return view
}

func writeServiceError(w http.ResponseWriter, err error) {
	var ruleErr domain.RuleViolationError
	switch {
	case core.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case core.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &ruleErr):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"success": true, "data": data})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "error": message})
}
