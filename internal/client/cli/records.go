package cli

import (
	"context"
	"fmt"

	"github.com/serenityspace/healthkeeper/internal/client/guard"
	"github.com/serenityspace/healthkeeper/internal/client/models"
)

const pageAfterAuth = guard.PageDashboard

// renderPage prints the view for the page just navigated to.
func (a *App) renderPage(p guard.Page) {
	switch p {
	case guard.PageDashboard:
		fmt.Printf("--- Dashboard ---\nmedications: %d  appointments: %d  vitals: %d\n",
			len(a.svc.Medications()), len(a.svc.Appointments()), len(a.svc.Vitals()))
	case guard.PageMedications:
		renderRecords("Medications", a.svc.Medications())
	case guard.PageAppointments:
		renderRecords("Appointments", a.svc.Appointments())
	case guard.PageVitals:
		renderRecords("Vitals (most recent first)", a.svc.Vitals())
	case guard.PageProfile:
		fmt.Printf("--- Profile ---\n%v\n", a.svc.Profile())
	case guard.PageLogin:
		fmt.Println("--- Login --- (type 'login' to sign in, 'signup' to create an account)")
	case guard.PageSignup:
		fmt.Println("--- Signup --- (type 'signup' to create an account)")
	case guard.PageHelp:
		a.printHelp()
	}
}

func renderRecords(title string, records []models.Record) {
	fmt.Printf("--- %s ---\n", title)
	if len(records) == 0 {
		fmt.Println("(none)")
		return
	}
	for i, r := range records {
		fmt.Printf("%2d. %v\n", i+1, r)
	}
}

// AddMedication prompts for fields and appends a medication record.
func (a *App) AddMedication(ctx context.Context) {
	if !a.guard.RequireAuth(ctx) {
		return
	}
	fields, err := a.readFields("name", "dosage", "frequency")
	if err != nil {
		return
	}
	if err := a.svc.AddMedication(ctx, models.NewRecord(fields)); err != nil {
		fmt.Println(humanize(err))
		return
	}
	fmt.Println("Medication added.")
}

// AddAppointment prompts for fields and appends an appointment record.
func (a *App) AddAppointment(ctx context.Context) {
	if !a.guard.RequireAuth(ctx) {
		return
	}
	fields, err := a.readFields("doctor", "date", "time", "reason")
	if err != nil {
		return
	}
	if err := a.svc.AddAppointment(ctx, models.NewRecord(fields)); err != nil {
		fmt.Println(humanize(err))
		return
	}
	fmt.Println("Appointment added.")
}

// AddVital prompts for fields and prepends a vital reading, keeping the
// collection most-recent-first.
func (a *App) AddVital(ctx context.Context) {
	if !a.guard.RequireAuth(ctx) {
		return
	}
	fields, err := a.readFields("type", "value")
	if err != nil {
		return
	}
	if err := a.svc.AddVital(ctx, models.NewRecord(fields)); err != nil {
		fmt.Println(humanize(err))
		return
	}
	fmt.Println("Vital recorded.")
}

// SetDisplayName updates the profile display name and saves the profile
// wholesale.
func (a *App) SetDisplayName(ctx context.Context, name string) {
	if !a.guard.RequireAuth(ctx) {
		return
	}
	if name == "" {
		fmt.Println("Usage: setname <name>")
		return
	}
	profile := a.svc.Profile()
	profile["name"] = name
	if err := a.svc.SaveProfile(ctx, profile); err != nil {
		fmt.Println(humanize(err))
		return
	}
	fmt.Println("Profile saved.")
}

func (a *App) readFields(names ...string) (map[string]any, error) {
	fields := make(map[string]any, len(names))
	for _, name := range names {
		v, err := a.readLine(name + ": ")
		if err != nil {
			return nil, err
		}
		if v != "" {
			fields[name] = v
		}
	}
	return fields, nil
}
