package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/wolftalk/wolftalk/client"
	"github.com/wolftalk/wolftalk/store"
)

func newProfileCmd(a *app) *cobra.Command {
	var (
		name       string
		email      string
		department string
	)
	cmd := &cobra.Command{
		Use:   "profile [unity id]",
		Short: "Show your profile or another user's, or update yours",
		Long: `Show your profile, or the profile of the given unity id. --name, --email
and --department update your own profile; the department is an id or a
code such as CSC.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			users, me, err := a.signIn(ctx)
			if err != nil {
				return err
			}
			defer users.Close()
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				p, err := users.FetchProfile(ctx, args[0])
				if err != nil {
					return err
				}
				if p == nil {
					return fmt.Errorf("no user %q", args[0])
				}
				printProfile(out, p)
				return nil
			}

			flags := cmd.Flags()
			if !flags.Changed("name") && !flags.Changed("email") && !flags.Changed("department") {
				printProfile(out, me)
				return nil
			}
			update := *me
			if flags.Changed("name") {
				update.DisplayName = name
			}
			if flags.Changed("email") {
				update.Email = email
			}
			if flags.Changed("department") {
				depts := store.NewDepartmentStore(a.api, a.logger)
				defer depts.Close()
				id, err := resolveDepartment(ctx, depts, department)
				if err != nil {
					return err
				}
				d, err := depts.FetchByID(ctx, id)
				if err != nil {
					return err
				}
				update.DepartmentID = &d.ID
				update.Department = d.Name
			}
			p, err := users.UpdateProfile(ctx, update)
			if err != nil {
				return err
			}
			printProfile(out, p)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new display name")
	cmd.Flags().StringVar(&email, "email", "", "new email address")
	cmd.Flags().StringVarP(&department, "department", "d", "", "new department id or code")
	return cmd
}

func printProfile(w io.Writer, p *client.Profile) {
	fmt.Fprintf(w, "%s (#%d)\n", p.UnityID, p.ID)
	if p.DisplayName != "" {
		fmt.Fprintf(w, "name: %s\n", p.DisplayName)
	}
	if p.Email != "" {
		fmt.Fprintf(w, "email: %s\n", p.Email)
	}
	if p.Department != "" {
		fmt.Fprintf(w, "department: %s\n", p.Department)
	}
}
