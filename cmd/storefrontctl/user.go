package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/repository"
	"github.com/pillarworks/storefront/services"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage dashboard accounts",
}

var (
	userEmail    string
	userPassword string
	userName     string
	userRole     string
)

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a dashboard account",
	Example: `  storefrontctl user create --email ops@example.com --password 'long-secret' --role admin`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		users := services.NewUserService(
			repository.NewSQLiteUserRepo(db.Conn),
			repository.NewSQLiteRefreshTokenRepo(db.Conn),
		)
		user, err := users.Create(cmd.Context(), nil, &models.CreateUserRequest{
			Email:    userEmail,
			Name:     userName,
			Password: userPassword,
			Role:     models.UserRole(userRole),
		})
		if err != nil {
			return err
		}

		log.Info("user created", zap.String("id", user.ID), zap.String("role", string(user.Role)))
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", user.ID, user.Email, user.Role)
		return nil
	},
}

func init() {
	f := userCreateCmd.Flags()
	f.StringVar(&userEmail, "email", "", "login email")
	f.StringVar(&userPassword, "password", "", "initial password")
	f.StringVar(&userName, "name", "", "display name")
	f.StringVar(&userRole, "role", string(models.RoleEditor), "admin or editor")
	_ = userCreateCmd.MarkFlagRequired("email")
	_ = userCreateCmd.MarkFlagRequired("password")

	userCmd.AddCommand(userCreateCmd)
}
