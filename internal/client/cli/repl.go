package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/serenityspace/healthkeeper/internal/client/guard"
)

func (a *App) prompt() string {
	who := ""
	if user := a.svc.User(); user != nil {
		who = user.Email + " "
	}
	return fmt.Sprintf("serenity %s[%s] > ", who, a.guard.Current())
}

func (a *App) repl(ctx context.Context) {
	fmt.Println("SerenitySpace health client (type 'help' for commands)")

	for {
		fmt.Print(a.prompt())
		line, err := a.reader.ReadString('\n')
		if err != nil {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		if parts[0] == "exit" || parts[0] == "quit" {
			fmt.Println("Bye!")
			return
		}
		a.dispatch(ctx, parts[0], parts[1:])
	}
}

// dispatch runs one command, recovering panics so an unexpected failure
// surfaces as a transient notice instead of crashing the session.
func (a *App) dispatch(ctx context.Context, cmd string, args []string) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error(ctx, "command panicked", "command", cmd, "panic", r)
			fmt.Println("An unexpected error occurred. Please try again.")
		}
	}()

	switch cmd {
	case "help":
		a.printHelp()
	case "login":
		a.Login(ctx)
	case "signup":
		a.Signup(ctx)
	case "logout":
		a.Logout(ctx)
	case "go":
		if len(args) == 0 {
			fmt.Println("Usage: go <dashboard|medications|appointments|vitals|profile|help>")
			return
		}
		a.goTo(ctx, guard.Page(args[0]))
	case "addmed":
		a.AddMedication(ctx)
	case "addappt":
		a.AddAppointment(ctx)
	case "addvital":
		a.AddVital(ctx)
	case "setname":
		a.SetDisplayName(ctx, strings.Join(args, " "))
	default:
		fmt.Println("Unknown command:", cmd)
	}
}

func (a *App) printHelp() {
	if a.guard.IsAuthenticated(context.Background()) {
		fmt.Println("Available commands: go <page>, addmed, addappt, addvital, setname <name>, logout, exit")
	} else {
		fmt.Println("Available commands: login, signup, exit")
	}
}

// goTo navigates on request, re-running the guard so protected pages stay
// protected.
func (a *App) goTo(ctx context.Context, p guard.Page) {
	switch p {
	case guard.PageDashboard, guard.PageMedications, guard.PageAppointments,
		guard.PageVitals, guard.PageProfile, guard.PageHelp,
		guard.PageLogin, guard.PageSignup, guard.PageIndex:
	default:
		fmt.Println("Unknown page:", p)
		return
	}
	a.navigateTo(p)
	a.guard.CheckAuthOnPageLoad(ctx)
}
