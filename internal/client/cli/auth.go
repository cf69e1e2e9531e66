package cli

import (
	"context"
	"fmt"

	"github.com/serenityspace/healthkeeper/internal/client/models"
)

// Login prompts for credentials and signs in. On success the user lands on
// the dashboard with freshly loaded data.
func (a *App) Login(ctx context.Context) {
	email, err := a.readLine("Email: ")
	if err != nil {
		return
	}
	password, err := a.readPassword("Password: ")
	if err != nil {
		return
	}

	if err := a.svc.Login(ctx, email, password); err != nil {
		fmt.Println(humanize(err))
		return
	}
	fmt.Println("Signed in.")
	a.navigateTo(pageAfterAuth)
}

// Signup prompts for account details and creates the account.
func (a *App) Signup(ctx context.Context) {
	email, err := a.readLine("Email: ")
	if err != nil {
		return
	}
	name, err := a.readLine("Display name: ")
	if err != nil {
		return
	}
	password, err := a.readPassword("Password: ")
	if err != nil {
		return
	}

	profile := models.Profile{}
	if name != "" {
		profile["name"] = name
	}
	if err := a.svc.SignUp(ctx, email, password, profile); err != nil {
		fmt.Println(humanize(err))
		return
	}
	fmt.Println("Account created.")
	a.navigateTo(pageAfterAuth)
}

// Logout syncs, signs out, and returns to the login page.
func (a *App) Logout(ctx context.Context) {
	if err := a.svc.Logout(ctx); err != nil {
		fmt.Println(humanize(err))
		return
	}
	fmt.Println("Signed out.")
}
