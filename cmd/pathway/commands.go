package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/pavelanni/pathway/internal/model"
	"github.com/pavelanni/pathway/internal/store"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import session and assessment templates from YAML or JSON files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(cmd)
			v := viperForCmd(cmd)
			db, err := store.New(v.GetString("db"))
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()
			return importTemplates(commandContext(cmd), db, args)
		},
	}
	cmd.Flags().String("db", "pathway.db", "SQLite database path")
	addLogFlags(cmd)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a user's progress records and assessment results as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "pathway.db", "SQLite database path")
	f.StringP("user", "u", "", "Username to export (required)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(cmd)

	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	user, err := lookupUser(db, v.GetString("user"))
	if err != nil {
		return err
	}
	export, err := db.ExportProgress(commandContext(cmd), user.ID)
	if err != nil {
		return fmt.Errorf("export progress: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)
	slog.Info("exported progress", "user", user.Username,
		"sessions", len(export.Sessions), "assessments", len(export.Assessments))
	return nil
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	add := &cobra.Command{
		Use:   "add USERNAME",
		Short: "Create a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(cmd)
			v := viperForCmd(cmd)
			password := v.GetString("password")
			if password == "" {
				return fmt.Errorf("password is required: set --password flag or PATHWAY_PASSWORD env var")
			}
			role := model.UserRole(v.GetString("role"))
			if role != model.UserRoleClient && role != model.UserRoleAdmin {
				return fmt.Errorf("unknown role %q", role)
			}

			db, err := store.New(v.GetString("db"))
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			id, err := createUser(db, args[0], v.GetString("display-name"), password, role)
			if err != nil {
				return fmt.Errorf("create user: %w", err)
			}
			slog.Info("created user", "id", id, "username", args[0], "role", role)
			return nil
		},
	}
	f := add.Flags()
	f.String("db", "pathway.db", "SQLite database path")
	f.String("password", "", "Password for the new user")
	f.String("display-name", "", "Display name (defaults to the username)")
	f.String("role", string(model.UserRoleClient), "Role (client, admin)")
	addLogFlags(add)

	cmd.AddCommand(add)
	return cmd
}

func lookupUser(db *store.Store, username string) (*model.User, error) {
	user, err := db.GetUserByUsername(username)
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", username, err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %s: %w", username, model.ErrNotFound)
	}
	return user, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
