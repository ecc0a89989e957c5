package clinicapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cliniccore/internal/core"
)

func newTestHandler(t *testing.T) (*Handler, *core.Service) {
	t.Helper()
	svc := core.NewService(core.NewMemoryStore(core.DefaultRulesEngine()))
	return NewHandler(svc), svc
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func do(t *testing.T, h http.Handler, method, path string, body any) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope from %q: %v", rec.Body.String(), err)
	}
	return rec.Code, env
}

func registerDoctorHTTP(t *testing.T, h *Handler, name, specialization string) string {
	t.Helper()
	status, env := do(t, h, http.MethodPost, "/api/v1/doctors", map[string]any{
		"name": name, "specialization": specialization,
	})
	if status != http.StatusCreated || !env.Success {
		t.Fatalf("register doctor: status=%d env=%+v", status, env)
	}
	var payload struct {
		Doctor struct {
			ID string `json:"id"`
		} `json:"doctor"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("decode doctor payload: %v", err)
	}
	return payload.Doctor.ID
}

func registerPatientHTTP(t *testing.T, h *Handler, name string, symptoms []string) string {
	t.Helper()
	status, env := do(t, h, http.MethodPost, "/api/v1/patients", map[string]any{
		"name": name, "age": 40, "gender": "F", "symptoms": symptoms,
	})
	if status != http.StatusCreated || !env.Success {
		t.Fatalf("register patient: status=%d env=%+v", status, env)
	}
	var payload struct {
		Patient struct {
			ID string `json:"id"`
		} `json:"patient"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("decode patient payload: %v", err)
	}
	return payload.Patient.ID
}

func TestRegisterAndFetchDoctor(t *testing.T) {
	h, _ := newTestHandler(t)
	id := registerDoctorHTTP(t, h, "Dr. Meera Rao", "Cardiology")

	status, env := do(t, h, http.MethodGet, "/api/v1/doctors/"+id, nil)
	if status != http.StatusOK || !env.Success {
		t.Fatalf("get doctor: status=%d env=%+v", status, env)
	}
	if !strings.Contains(string(env.Data), "Dr. Meera Rao") {
		t.Fatalf("expected doctor payload, got %s", env.Data)
	}

	status, env = do(t, h, http.MethodGet, "/api/v1/doctors", nil)
	if status != http.StatusOK {
		t.Fatalf("list doctors: status=%d", status)
	}
	var listing struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(env.Data, &listing); err != nil || listing.Count != 1 {
		t.Fatalf("expected count 1, got %s (%v)", env.Data, err)
	}
}

func TestRegisterPatientResolvesDoctorName(t *testing.T) {
	h, _ := newTestHandler(t)
	registerDoctorHTTP(t, h, "Dr. Meera Rao", "Cardiology")

	status, env := do(t, h, http.MethodPost, "/api/v1/patients", map[string]any{
		"name": "Asha Pillai", "age": 54, "gender": "F", "symptoms": []string{"chest pain"},
	})
	if status != http.StatusCreated || !env.Success {
		t.Fatalf("register patient: status=%d env=%+v", status, env)
	}
	var payload struct {
		Patient struct {
			ID             string `json:"id"`
			Status         string `json:"status"`
			AssignedDoctor string `json:"assigned_doctor"`
		} `json:"patient"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Patient.Status != "inpatient" {
		t.Fatalf("expected inpatient, got %s", payload.Patient.Status)
	}
	if payload.Patient.AssignedDoctor != "Dr. Meera Rao" {
		t.Fatalf("expected resolved doctor name, got %q", payload.Patient.AssignedDoctor)
	}
	if payload.Message != "Asha Pillai admitted as inpatient" {
		t.Fatalf("unexpected message %q", payload.Message)
	}
}

func TestRegisterPatientWithoutDoctorsReportsViolation(t *testing.T) {
	h, _ := newTestHandler(t)
	status, env := do(t, h, http.MethodPost, "/api/v1/patients", map[string]any{
		"name": "Nisha", "age": 30, "gender": "F", "symptoms": []string{"sore throat"},
	})
	if status != http.StatusCreated || !env.Success {
		t.Fatalf("registration must succeed: status=%d env=%+v", status, env)
	}
	if !strings.Contains(string(env.Data), "doctor_assignment") {
		t.Fatalf("expected doctor_assignment violation in payload, got %s", env.Data)
	}
}

func TestValidationErrorsReturn400(t *testing.T) {
	h, _ := newTestHandler(t)
	status, env := do(t, h, http.MethodPost, "/api/v1/patients", map[string]any{
		"name": "", "age": 30, "gender": "F", "symptoms": []string{"fever"},
	})
	if status != http.StatusBadRequest || env.Success {
		t.Fatalf("expected 400, got %d %+v", status, env)
	}
	if env.Error == "" {
		t.Fatalf("expected error message in envelope")
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/patients", strings.NewReader("{broken"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed JSON, got %d", rec.Code)
	}
}

func TestUnknownEntitiesReturn404(t *testing.T) {
	h, _ := newTestHandler(t)
	for _, path := range []string{"/api/v1/patients/PAT-NOPE", "/api/v1/doctors/DOC-NOPE", "/api/v1/nothing"} {
		status, env := do(t, h, http.MethodGet, path, nil)
		if status != http.StatusNotFound || env.Success {
			t.Fatalf("expected 404 for %s, got %d %+v", path, status, env)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h, _ := newTestHandler(t)
	status, _ := do(t, h, http.MethodDelete, "/api/v1/doctors", nil)
	if status != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", status)
	}
	status, _ = do(t, h, http.MethodGet, "/api/v1/treatments", nil)
	if status != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET treatments, got %d", status)
	}
}

func TestTreatmentAndDischargeFlow(t *testing.T) {
	h, _ := newTestHandler(t)
	registerDoctorHTTP(t, h, "Dr. Meera Rao", "Cardiology")
	pid := registerPatientHTTP(t, h, "Asha Pillai", []string{"chest pain"})

	status, env := do(t, h, http.MethodPost, "/api/v1/treatments", map[string]any{
		"patient_id": pid, "note": "stable", "treatment": "ECG", "cost": 1200,
	})
	if status != http.StatusOK || !env.Success {
		t.Fatalf("treatment: status=%d env=%+v", status, env)
	}
	var payload struct {
		Patient struct {
			BillAmount float64 `json:"bill_amount"`
		} `json:"patient"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil || payload.Patient.BillAmount != 1200 {
		t.Fatalf("expected bill 1200, got %s (%v)", env.Data, err)
	}

	status, env = do(t, h, http.MethodPost, "/api/v1/patients/"+pid+"/discharge", nil)
	if status != http.StatusOK || !env.Success {
		t.Fatalf("discharge: status=%d env=%+v", status, env)
	}
	if !strings.Contains(string(env.Data), `"status":"discharged"`) {
		t.Fatalf("expected discharged patient, got %s", env.Data)
	}

	status, env = do(t, h, http.MethodPost, "/api/v1/patients/"+pid+"/discharge", nil)
	if status != http.StatusBadRequest || env.Success {
		t.Fatalf("second discharge must fail with 400, got %d %+v", status, env)
	}
}

func TestTreatmentOnOutpatientReturns400(t *testing.T) {
	h, _ := newTestHandler(t)
	registerDoctorHTTP(t, h, "Dr. Iyer", "General Medicine")
	pid := registerPatientHTTP(t, h, "Vikram Shah", []string{"sore throat"})

	status, env := do(t, h, http.MethodPost, "/api/v1/treatments", map[string]any{
		"patient_id": pid, "note": "x", "cost": 10,
	})
	if status != http.StatusBadRequest || env.Success {
		t.Fatalf("expected 400, got %d %+v", status, env)
	}
}

func TestDoctorLeaveEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)
	departing := registerDoctorHTTP(t, h, "Dr. Meera Rao", "Cardiology")
	registerDoctorHTTP(t, h, "Dr. Suresh Nair", "Cardiology")
	registerPatientHTTP(t, h, "Asha Pillai", []string{"chest pain"})

	status, env := do(t, h, http.MethodPost, "/api/v1/doctors/"+departing+"/leave", nil)
	if status != http.StatusOK || !env.Success {
		t.Fatalf("leave: status=%d env=%+v", status, env)
	}
	var payload struct {
		Doctor struct {
			OnLeave bool `json:"on_leave"`
		} `json:"doctor"`
		Reassigned int `json:"reassigned"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if !payload.Doctor.OnLeave {
		t.Fatalf("expected doctor flagged on leave, got %s", env.Data)
	}

	status, env = do(t, h, http.MethodPost, "/api/v1/doctors/DOC-NOPE/leave", nil)
	if status != http.StatusNotFound || env.Success {
		t.Fatalf("expected 404 for unknown doctor, got %d %+v", status, env)
	}
}

func TestStatisticsEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)
	registerDoctorHTTP(t, h, "Dr. Iyer", "General Medicine")
	registerPatientHTTP(t, h, "Vikram Shah", []string{"sore throat"})

	status, env := do(t, h, http.MethodGet, "/api/v1/statistics", nil)
	if status != http.StatusOK || !env.Success {
		t.Fatalf("statistics: status=%d env=%+v", status, env)
	}
	var payload struct {
		Statistics core.Statistics `json:"statistics"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("decode statistics: %v", err)
	}
	if payload.Statistics.TotalPatients != 1 || payload.Statistics.Outpatients != 1 || payload.Statistics.TotalDoctors != 1 {
		t.Fatalf("unexpected statistics %+v", payload.Statistics)
	}
	if payload.Statistics.TotalRevenue != 500 {
		t.Fatalf("expected outpatient fee revenue, got %v", payload.Statistics.TotalRevenue)
	}
}
