package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/abcfood/fingerprint-bridge/internal/cli/output"
	"github.com/abcfood/fingerprint-bridge/internal/cli/prompt"
	"github.com/abcfood/fingerprint-bridge/pkg/device"
	"github.com/abcfood/fingerprint-bridge/pkg/service"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user records on terminals",
}

var (
	userAddUID       int
	userAddUserID    string
	userAddName      string
	userAddPrivilege int
	userAddPassword  string
	userAddCard      int

	userUpdateName      string
	userUpdateUserID    string
	userUpdatePrivilege int
	userUpdateCard      int

	userDeleteConfirm bool
	userSyncDryRun    bool
)

var userListCmd = &cobra.Command{
	Use:   "list <device>",
	Short: "List user records",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserList,
}

var userGetCmd = &cobra.Command{
	Use:   "get <device> <user-id>",
	Short: "Show one user looked up by HRIS user id",
	Args:  cobra.ExactArgs(2),
	RunE:  runUserGet,
}

var userAddCmd = &cobra.Command{
	Use:   "add <device>",
	Short: "Enroll a user record",
	Long: `Enroll a user record on the device. Fields not given as flags are
prompted for. Names longer than 24 bytes are truncated to the device
limit.

Examples:
  fpctl user add tmi --uid 42 --user-id E100 --name "Aung Kyaw"
  fpctl user add tmi`,
	Args: cobra.ExactArgs(1),
	RunE: runUserAdd,
}

var userUpdateCmd = &cobra.Command{
	Use:   "update <device> <uid>",
	Short: "Update fields of an existing user",
	Long: `Update fields of an existing user record. Only the flags you pass
change; everything else is preserved.`,
	Args: cobra.ExactArgs(2),
	RunE: runUserUpdate,
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete <device> <uid>",
	Short: "Delete a user record and its fingerprints",
	Args:  cobra.ExactArgs(2),
	RunE:  runUserDelete,
}

var userSyncCmd = &cobra.Command{
	Use:   "sync <device>",
	Short: "Sync users from the HRIS onto a device",
	Long: `Diff the HRIS employee list against the device and enroll missing
employees or rename changed ones. Runs as a dry run by default; pass
--dry-run=false to apply.

Examples:
  fpctl user sync tmi
  fpctl user sync tmi --dry-run=false`,
	Args: cobra.ExactArgs(1),
	RunE: runUserSync,
}

func init() {
	userAddCmd.Flags().IntVar(&userAddUID, "uid", 0, "Device-internal uid")
	userAddCmd.Flags().StringVar(&userAddUserID, "user-id", "", "HRIS user id")
	userAddCmd.Flags().StringVar(&userAddName, "name", "", "Display name (required)")
	userAddCmd.Flags().IntVar(&userAddPrivilege, "privilege", 0, "Privilege level (0 user, 14 admin)")
	userAddCmd.Flags().StringVar(&userAddPassword, "password", "", "Keypad password")
	userAddCmd.Flags().IntVar(&userAddCard, "card", 0, "RFID card number")

	userUpdateCmd.Flags().StringVar(&userUpdateName, "name", "", "New display name")
	userUpdateCmd.Flags().StringVar(&userUpdateUserID, "user-id", "", "New HRIS user id")
	userUpdateCmd.Flags().IntVar(&userUpdatePrivilege, "privilege", -1, "New privilege level")
	userUpdateCmd.Flags().IntVar(&userUpdateCard, "card", -1, "New RFID card number")

	userDeleteCmd.Flags().BoolVar(&userDeleteConfirm, "confirm", false, "Skip the interactive confirmation")
	userSyncCmd.Flags().BoolVar(&userSyncDryRun, "dry-run", true, "Plan only; pass --dry-run=false to apply")

	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userGetCmd)
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userUpdateCmd)
	userCmd.AddCommand(userDeleteCmd)
	userCmd.AddCommand(userSyncCmd)
}

type userList []device.User

func (l userList) Headers() []string {
	return []string{"UID", "USER ID", "NAME", "PRIVILEGE", "CARD"}
}

func (l userList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, u := range l {
		card := ""
		if u.Card != 0 {
			card = strconv.Itoa(u.Card)
		}
		rows = append(rows, []string{
			strconv.Itoa(u.UID), u.UserID, u.Name,
			strconv.Itoa(u.Privilege), card,
		})
	}
	return rows
}

func runUserList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	users, err := a.Service.ListUsers(ctx, args[0])
	if err != nil {
		return err
	}

	p, err := newPrinter()
	if err != nil {
		return err
	}
	if p.Format() == output.FormatTable {
		if err := output.PrintTable(os.Stdout, userList(users)); err != nil {
			return err
		}
		fmt.Printf("%d user(s)\n", len(users))
		return nil
	}
	return p.Print(users)
}

func runUserGet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	user, err := a.Service.GetUser(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	return printResult(user)
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	var err error
	if !cmd.Flags().Changed("name") {
		if userAddName, err = prompt.InputRequired("Name"); err != nil {
			return err
		}
	}
	if !cmd.Flags().Changed("uid") {
		if userAddUID, err = prompt.InputInt("UID", 0); err != nil {
			return err
		}
	}
	if !cmd.Flags().Changed("user-id") {
		if userAddUserID, err = prompt.Input("HRIS user id", ""); err != nil {
			return err
		}
	}

	ctx := context.Background()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	u := device.User{
		UID:       userAddUID,
		UserID:    userAddUserID,
		Name:      userAddName,
		Privilege: userAddPrivilege,
		Password:  userAddPassword,
		Card:      userAddCard,
	}
	if err := a.Service.AddUser(ctx, args[0], u); err != nil {
		return err
	}
	fmt.Printf("User %q enrolled on %s (uid %d).\n", u.Name, args[0], u.UID)
	return nil
}

func runUserUpdate(cmd *cobra.Command, args []string) error {
	uid, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid uid %q", args[1])
	}

	var upd service.UserUpdate
	if cmd.Flags().Changed("name") {
		upd.Name = &userUpdateName
	}
	if cmd.Flags().Changed("user-id") {
		upd.UserID = &userUpdateUserID
	}
	if cmd.Flags().Changed("privilege") {
		upd.Privilege = &userUpdatePrivilege
	}
	if cmd.Flags().Changed("card") {
		upd.Card = &userUpdateCard
	}
	if upd.Name == nil && upd.UserID == nil && upd.Privilege == nil && upd.Card == nil {
		return fmt.Errorf("nothing to update; pass at least one of --name, --user-id, --privilege, --card")
	}

	ctx := context.Background()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	if err := a.Service.UpdateUser(ctx, args[0], uid, upd); err != nil {
		return err
	}
	fmt.Printf("User uid %d on %s updated.\n", uid, args[0])
	return nil
}

func runUserDelete(cmd *cobra.Command, args []string) error {
	uid, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid uid %q", args[1])
	}

	ok, err := prompt.ConfirmWithForce(
		fmt.Sprintf("Delete user uid %d from %s", uid, args[0]), userDeleteConfirm)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Aborted.")
		return nil
	}

	ctx := context.Background()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	if err := a.Service.DeleteUser(ctx, args[0], uid); err != nil {
		return err
	}
	fmt.Printf("User uid %d deleted from %s.\n", uid, args[0])
	return nil
}

func runUserSync(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	result, err := a.Service.SyncUsersFromHRIS(ctx, args[0], userSyncDryRun)
	if err != nil {
		return err
	}
	if err := printResult(result); err != nil {
		return err
	}
	if result.DryRun {
		fmt.Println("Dry run; pass --dry-run=false to apply.")
	}
	return nil
}
