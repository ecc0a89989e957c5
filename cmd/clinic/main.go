// Command clinic is an interactive console for the clinic service. It drives
// the same service layer as the HTTP daemon against the configured storage
// backend (jsonfile by default, so state survives between runs).
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"cliniccore/internal/core"
)

func main() {
	engine := core.DefaultRulesEngine()
	store, err := core.OpenPersistentStore(engine)
	if err != nil {
		log.Fatalf("clinic: open storage: %v", err)
	}
	svc := core.NewService(store)
	console{svc: svc, in: bufio.NewScanner(os.Stdin), out: os.Stdout}.loop(context.Background())
}

type console struct {
	svc *core.Service
	in  *bufio.Scanner
	out io.Writer
}

func (c console) loop(ctx context.Context) {
	for {
		c.printf("\n==== Clinic Management ====\n")
		c.printf("1. Register doctor\n")
		c.printf("2. Register patient\n")
		c.printf("3. Record treatment\n")
		c.printf("4. Discharge patient\n")
		c.printf("5. Mark doctor on leave\n")
		c.printf("6. List patients\n")
		c.printf("7. List doctors\n")
		c.printf("8. Statistics\n")
		c.printf("9. Exit\n")
		switch c.prompt("Choose an option: ") {
		case "1":
			c.registerDoctor(ctx)
		case "2":
			c.registerPatient(ctx)
		case "3":
			c.recordTreatment(ctx)
		case "4":
			c.dischargePatient(ctx)
		case "5":
			c.markLeave(ctx)
		case "6":
			c.listPatients()
		case "7":
			c.listDoctors()
		case "8":
			c.statistics(ctx)
		case "9", "":
			c.printf("Goodbye.\n")
			return
		default:
			c.printf("Invalid option.\n")
		}
	}
}

func (c console) registerDoctor(ctx context.Context) {
	name := c.prompt("Doctor name: ")
	specialization := c.prompt("Specialization: ")
	doctor, _, err := c.svc.RegisterDoctor(ctx, name, specialization)
	if err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	c.printf("Registered %s (%s) with id %s\n", doctor.Name, doctor.Specialization, doctor.ID)
}

func (c console) registerPatient(ctx context.Context) {
	name := c.prompt("Patient name: ")
	age, err := strconv.Atoi(c.prompt("Age: "))
	if err != nil {
		c.printf("Error: age must be a number\n")
		return
	}
	gender := c.prompt("Gender: ")
	symptoms := splitList(c.prompt("Symptoms (comma separated): "))
	condition := c.prompt("Condition (normal/critical): ")

	outcome, _, err := c.svc.RegisterPatient(ctx, core.RegisterPatientInput{
		Name:      name,
		Age:       age,
		Gender:    gender,
		Symptoms:  symptoms,
		Condition: condition,
	})
	if err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	c.printf("%s (id %s)\n", outcome.Message, outcome.Patient.ID)
	if outcome.Doctor != nil {
		c.printf("Assigned doctor: %s (%s)\n", outcome.Doctor.Name, outcome.Doctor.Specialization)
	}
}

func (c console) recordTreatment(ctx context.Context) {
	id := c.prompt("Patient id: ")
	note := c.prompt("Condition note: ")
	treatment := c.prompt("Treatment given: ")
	cost, err := strconv.ParseFloat(c.prompt("Cost: "), 64)
	if err != nil {
		c.printf("Error: cost must be a number\n")
		return
	}
	discharge := strings.EqualFold(c.prompt("Discharge after this treatment? (y/N): "), "y")

	patient, _, err := c.svc.RecordTreatment(ctx, core.TreatmentInput{
		PatientID: id,
		Note:      note,
		Treatment: treatment,
		Cost:      cost,
		Discharge: discharge,
	})
	if err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	c.printf("Recorded. Running bill for %s: %.2f\n", patient.Name, patient.BillAmount)
	if patient.Status == core.StatusDischarged {
		c.printf("%s discharged with final bill %.2f\n", patient.Name, patient.BillAmount)
	}
}

func (c console) dischargePatient(ctx context.Context) {
	id := c.prompt("Patient id: ")
	patient, _, err := c.svc.DischargePatient(ctx, id, nil)
	if err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	c.printf("%s discharged with final bill %.2f\n", patient.Name, patient.BillAmount)
}

func (c console) markLeave(ctx context.Context) {
	id := c.prompt("Doctor id: ")
	outcome, _, err := c.svc.MarkDoctorOnLeave(ctx, id)
	if err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	c.printf("%s is now on leave. Reassigned %d patient(s).\n", outcome.Doctor.Name, outcome.Reassigned)
	for _, pid := range outcome.Unassigned {
		c.printf("No available doctor for patient %s\n", pid)
	}
}

func (c console) listPatients() {
	patients := c.svc.ListPatients()
	if len(patients) == 0 {
		c.printf("No patients registered.\n")
		return
	}
	for _, p := range patients {
		doctor := "unassigned"
		if p.AssignedDoctorID != nil {
			if d, ok := c.svc.GetDoctor(*p.AssignedDoctorID); ok {
				doctor = d.Name
			}
		}
		c.printf("%s | %s | age %d | %s | doctor: %s | bill %.2f\n",
			p.ID, p.Name, p.Age, p.Status, doctor, p.BillAmount)
	}
}

func (c console) listDoctors() {
	doctors := c.svc.ListDoctors()
	if len(doctors) == 0 {
		c.printf("No doctors registered.\n")
		return
	}
	for _, d := range doctors {
		status := "available"
		if d.OnLeave {
			status = "on leave"
		}
		c.printf("%s | %s | %s | %d patient(s) | %s\n",
			d.ID, d.Name, d.Specialization, len(d.Patients), status)
	}
}

func (c console) statistics(ctx context.Context) {
	stats, err := c.svc.Statistics(ctx)
	if err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	c.printf("Patients: %d (inpatient %d, outpatient %d, discharged %d)\n",
		stats.TotalPatients, stats.Inpatients, stats.Outpatients, stats.Discharged)
	c.printf("Doctors: %d\n", stats.TotalDoctors)
	c.printf("Total revenue: %.2f\n", stats.TotalRevenue)
}

func (c console) prompt(label string) string {
	c.printf("%s", label)
	if !c.in.Scan() {
		return ""
	}
	return strings.TrimSpace(c.in.Text())
}

func (c console) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
