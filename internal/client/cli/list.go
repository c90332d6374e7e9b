package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

// Me prints the caller's own profile.
func (a *App) Me(ctx context.Context) error {
	profile, err := a.client.Me(ctx, a.accessToken)
	if err != nil {
		fmt.Println(err.Error())
		return err
	}

	fmt.Printf("%s <%s> (%s, %s)\n", profile.Name, profile.Email, profile.UserName, profile.Role)
	return nil
}

// Instructors prints every registered identity.
func (a *App) Instructors(ctx context.Context) error {
	profiles, err := a.client.Instructors(ctx, a.accessToken)
	if err != nil {
		fmt.Println(err.Error())
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tNAME\tEMAIL\tROLE")
	for _, p := range profiles {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.UserName, p.Name, p.Email, p.Role)
	}
	return w.Flush()
}

// Tokens prints every stored refresh-token record.
func (a *App) Tokens(ctx context.Context) error {
	tokens, err := a.client.Tokens(ctx, a.accessToken)
	if err != nil {
		fmt.Println(err.Error())
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USER\tISSUED\tEXPIRES")
	for _, t := range tokens {
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			t.UserID,
			t.IssuedAt.Format(time.RFC3339),
			t.ExpiresAt.Format(time.RFC3339),
		)
	}
	return w.Flush()
}
