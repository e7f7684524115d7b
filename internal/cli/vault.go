package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vaultguard/vaultguard/internal/generator"
	"github.com/vaultguard/vaultguard/internal/models"
	"github.com/vaultguard/vaultguard/internal/vault"
)

// vaultCmd groups the credential record commands that talk to a running
// server. All of them need --server and --token.
var vaultCmd = &cobra.Command{
	Use:     "vault",
	Aliases: []string{"records"},
	Short:   "Manage credential records on a running server",
	Long: `Manage credential records over the HTTP API of a running server.

All vault commands require --server (or VAULTGUARD_SERVER) and --token
(or VAULTGUARD_TOKEN) obtained from a sign-in.

Examples:
  # List all records
  vaultguard vault list --server http://localhost:8417 --token $TOKEN

  # Search within a category
  vaultguard vault list --query github --category Work

  # Add a record with a generated password
  vaultguard vault add --title GitHub --username octocat --generate

  # Toggle the favorite flag
  vaultguard vault favorite 1b9d6bcd-bbfd-4b2d-9b5d-ab8dfbbd4bed`,
}

var vaultListFlags struct {
	Query     string
	Category  string
	Favorites bool
}

// vaultListCmd represents the vault list command
var vaultListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List credential records",
	RunE:    runVaultList,
}

var vaultAddFlags struct {
	Title    string
	Username string
	Email    string
	Password string
	URL      string
	Notes    string
	Category string
	Generate bool
}

// vaultAddCmd represents the vault add command
var vaultAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a credential record",
	RunE:  runVaultAdd,
}

// vaultRemoveCmd represents the vault rm command
var vaultRemoveCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"remove", "delete"},
	Short:   "Delete a credential record",
	Args:    cobra.ExactArgs(1),
	RunE:    runVaultRemove,
}

// vaultFavoriteCmd represents the vault favorite command
var vaultFavoriteCmd = &cobra.Command{
	Use:     "favorite <id>",
	Aliases: []string{"fav"},
	Short:   "Toggle the favorite flag on a record",
	Args:    cobra.ExactArgs(1),
	RunE:    runVaultFavorite,
}

func init() {
	vaultListCmd.Flags().StringVarP(&vaultListFlags.Query, "query", "q", "", "Filter by title, username or URL")
	vaultListCmd.Flags().StringVar(&vaultListFlags.Category, "category", vault.CategoryAll, "Filter by category")
	vaultListCmd.Flags().BoolVar(&vaultListFlags.Favorites, "favorites", false, "Show only favorites")

	vaultAddCmd.Flags().StringVar(&vaultAddFlags.Title, "title", "", "Record title (required)")
	vaultAddCmd.Flags().StringVar(&vaultAddFlags.Username, "username", "", "Username")
	vaultAddCmd.Flags().StringVar(&vaultAddFlags.Email, "email", "", "Email address")
	vaultAddCmd.Flags().StringVar(&vaultAddFlags.Password, "password", "", "Password (required unless --generate)")
	vaultAddCmd.Flags().StringVar(&vaultAddFlags.URL, "url", "", "Site URL")
	vaultAddCmd.Flags().StringVar(&vaultAddFlags.Notes, "notes", "", "Free-form notes")
	vaultAddCmd.Flags().StringVar(&vaultAddFlags.Category, "category", "", "Category")
	vaultAddCmd.Flags().BoolVar(&vaultAddFlags.Generate, "generate", false, "Generate the password")

	vaultCmd.AddCommand(vaultListCmd)
	vaultCmd.AddCommand(vaultAddCmd)
	vaultCmd.AddCommand(vaultRemoveCmd)
	vaultCmd.AddCommand(vaultFavoriteCmd)
	RootCmd.AddCommand(vaultCmd)
}

// remoteVault builds the HTTP-backed store from the global flags.
func remoteVault() (*vault.RemoteStore, error) {
	if globalFlags.Server == "" {
		return nil, fmt.Errorf("--server is required (or set VAULTGUARD_SERVER)")
	}
	if globalFlags.Token == "" {
		return nil, fmt.Errorf("--token is required (or set VAULTGUARD_TOKEN)")
	}
	return vault.NewRemoteStore(globalFlags.Server, globalFlags.Token), nil
}

func runVaultList(cmd *cobra.Command, args []string) error {
	remote, err := remoteVault()
	if err != nil {
		return err
	}
	defer remote.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	records, err := remote.List(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}

	records = vault.Filter(records, vaultListFlags.Query, vaultListFlags.Category, vaultListFlags.Favorites)

	if globalFlags.JSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(records)
	}

	if len(records) == 0 {
		fmt.Println("No records found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tUSERNAME\tCATEGORY\tFAV\tUPDATED")
	for _, rec := range records {
		fav := ""
		if rec.Favorite {
			fav = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.ID, rec.Title, rec.Username, rec.Category, fav,
			rec.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runVaultAdd(cmd *cobra.Command, args []string) error {
	remote, err := remoteVault()
	if err != nil {
		return err
	}
	defer remote.Close()

	password := vaultAddFlags.Password
	if vaultAddFlags.Generate {
		password, err = generator.Generate(generator.DefaultLength, generator.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to generate password: %w", err)
		}
	}

	draft := models.Draft{
		Title:    vaultAddFlags.Title,
		Username: vaultAddFlags.Username,
		Email:    vaultAddFlags.Email,
		Password: password,
		URL:      vaultAddFlags.URL,
		Notes:    vaultAddFlags.Notes,
		Category: vaultAddFlags.Category,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	record, err := remote.Create(ctx, "", draft)
	if err != nil {
		return fmt.Errorf("failed to create record: %w", err)
	}

	if globalFlags.JSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(record)
	}

	fmt.Printf("Created %s (%s)\n", record.Title, record.ID)
	if vaultAddFlags.Generate {
		fmt.Printf("Password: %s\n", record.Password)
	}
	return nil
}

func runVaultRemove(cmd *cobra.Command, args []string) error {
	remote, err := remoteVault()
	if err != nil {
		return err
	}
	defer remote.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := remote.Delete(ctx, "", args[0]); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	fmt.Printf("Deleted %s\n", args[0])
	return nil
}

func runVaultFavorite(cmd *cobra.Command, args []string) error {
	remote, err := remoteVault()
	if err != nil {
		return err
	}
	defer remote.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	record, err := remote.Get(ctx, "", args[0])
	if err != nil {
		return fmt.Errorf("failed to load record: %w", err)
	}

	next, err := remote.ToggleFavorite(ctx, "", args[0], record.Favorite)
	if err != nil {
		return fmt.Errorf("failed to toggle favorite: %w", err)
	}

	if next {
		fmt.Printf("%s is now a favorite\n", record.Title)
	} else {
		fmt.Printf("%s is no longer a favorite\n", record.Title)
	}
	return nil
}
