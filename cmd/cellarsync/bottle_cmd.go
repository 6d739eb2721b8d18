package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cellarsync/cellarsync/internal/cellar"
	"github.com/cellarsync/cellarsync/internal/store"
)

func init() {
	rootCmd.AddCommand(newBottleCmd())
}

func newBottleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "bottle",
		Aliases: []string{"bottles"},
		Short:   "Edit the local cellar",
	}
	cmd.AddCommand(
		newBottleAddCmd(),
		newBottleListCmd(),
		newBottleConsumeCmd(),
		newBottleEventCmd(),
		newBottleRemoveCmd(),
	)
	return cmd
}

// bottleInput is one bottle in a YAML or JSON file given to `bottle add --file`.
type bottleInput struct {
	Name         string        `yaml:"name"`
	Vintage      int           `yaml:"vintage"`
	Type         string        `yaml:"type"`
	Country      string        `yaml:"country"`
	Region       string        `yaml:"region"`
	GrapeVariety []string      `yaml:"grapeVariety"`
	Location     string        `yaml:"location"`
	Quantity     int           `yaml:"quantity"`
	Price        *cellar.Price `yaml:"price"`
	Notes        string        `yaml:"notes"`
}

func (in *bottleInput) params() cellar.NewBottleParams {
	return cellar.NewBottleParams{
		Name:         in.Name,
		Vintage:      in.Vintage,
		Type:         cellar.WineType(in.Type),
		Country:      in.Country,
		Region:       in.Region,
		GrapeVariety: in.GrapeVariety,
		Location:     in.Location,
		Quantity:     in.Quantity,
		Price:        in.Price,
		Notes:        in.Notes,
	}
}

// parseBottleInputs accepts a single bottle or a list of bottles. JSON input
// works too since it is valid YAML.
func parseBottleInputs(data []byte) ([]bottleInput, error) {
	var many []bottleInput
	if err := yaml.Unmarshal(data, &many); err == nil {
		if len(many) == 0 {
			return nil, errors.New("no bottles in input")
		}
		return many, nil
	}

	var one bottleInput
	if err := yaml.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("parse bottles: %w", err)
	}
	return []bottleInput{one}, nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

// saveBottle stores b and counts it as one pending change.
func saveBottle(ctx context.Context, a *app, b *cellar.Bottle, description string) error {
	if err := a.store.PutBottle(ctx, b); err != nil {
		return err
	}
	_, err := a.mgr.RecordMutation(ctx, description)
	return err
}

// findBottle looks a bottle up by id or by a unique id prefix.
func findBottle(ctx context.Context, st *store.Store, ref string) (*cellar.Bottle, error) {
	b, err := st.GetBottle(ctx, ref)
	if err == nil || !errors.Is(err, store.ErrBottleNotFound) {
		return b, err
	}

	all, err := st.AllBottles(ctx)
	if err != nil {
		return nil, err
	}
	var match *cellar.Bottle
	for _, b := range all {
		if !strings.HasPrefix(b.ID, ref) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("bottle id %q is ambiguous", ref)
		}
		match = b
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", store.ErrBottleNotFound, ref)
	}
	return match, nil
}

func newBottleAddCmd() *cobra.Command {
	var in bottleInput
	var file string
	var price float64
	var currency string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add bottles from flags or a YAML/JSON file",
		Example: `  cellarsync bottle add --name Barolo --vintage 2016 --type red --country Italy --region Piedmont --quantity 3
  cellarsync bottle add --file bottles.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var inputs []bottleInput
			if file != "" {
				data, err := readInput(cmd, file)
				if err != nil {
					return err
				}
				if inputs, err = parseBottleInputs(data); err != nil {
					return err
				}
			} else {
				if in.Name == "" {
					return errors.New("either --name or --file is required")
				}
				if cmd.Flags().Changed("price") {
					in.Price = &cellar.Price{Amount: price, Currency: currency}
				}
				inputs = []bottleInput{in}
			}

			// validate everything before touching the store
			now := time.Now()
			bottles := make([]*cellar.Bottle, 0, len(inputs))
			for i := range inputs {
				b, err := cellar.NewBottle(inputs[i].params(), now)
				if err != nil {
					return fmt.Errorf("bottle %d: %w", i+1, err)
				}
				bottles = append(bottles, b)
			}

			return withApp(cmd, func(ctx context.Context, a *app) error {
				for _, b := range bottles {
					if err := saveBottle(ctx, a, b, "Add "+b.DisplayName()); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", green.Render("added"), b.DisplayName(), gray.Render(b.ID))
				}
				return nil
			})
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML or JSON file with one bottle or a list, - for stdin")
	cmd.Flags().StringVar(&in.Name, "name", "", "Wine name")
	cmd.Flags().IntVar(&in.Vintage, "vintage", 0, "Vintage year")
	cmd.Flags().StringVar(&in.Type, "type", string(cellar.WineTypeRed), "red, white, rosé or sparkling")
	cmd.Flags().StringVar(&in.Country, "country", "", "Country")
	cmd.Flags().StringVar(&in.Region, "region", "", "Region")
	cmd.Flags().StringSliceVar(&in.GrapeVariety, "grape", nil, "Grape variety, repeatable")
	cmd.Flags().StringVar(&in.Location, "location", "", "Where the bottle is stored")
	cmd.Flags().IntVarP(&in.Quantity, "quantity", "n", 1, "Number of bottles")
	cmd.Flags().Float64Var(&price, "price", 0, "Price per bottle")
	cmd.Flags().StringVar(&currency, "currency", "EUR", "Price currency")
	cmd.Flags().StringVar(&in.Notes, "notes", "", "Tasting or purchase notes")
	return cmd
}

func newBottleListCmd() *cobra.Command {
	var jsonOut bool
	var all bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List bottles in the local cellar",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				bottles, err := a.store.AllBottles(ctx)
				if err != nil {
					return err
				}
				if !all {
					inStock := bottles[:0]
					for _, b := range bottles {
						if b.Quantity() > 0 {
							inStock = append(inStock, b)
						}
					}
					bottles = inStock
				}

				w := cmd.OutOrStdout()
				if jsonOut {
					data, err := json.MarshalIndent(bottles, "", "  ")
					if err != nil {
						return err
					}
					_, err = fmt.Fprintf(w, "%s\n", data)
					return err
				}

				if len(bottles) == 0 {
					fmt.Fprintln(w, gray.Render("No bottles."))
					return nil
				}
				_, err = fmt.Fprintln(w, bottleTable(bottles))
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print bottles as JSON")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include bottles with no stock left")
	return cmd
}

func bottleTable(bottles []*cellar.Bottle) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(gray).
		Headers("ID", "NAME", "VINTAGE", "TYPE", "REGION", "QTY", "LOCATION")
	for _, b := range bottles {
		location := ""
		if b.Location != nil {
			location = *b.Location
		}
		t.Row(b.ID, b.Name, strconv.Itoa(b.Vintage), string(b.Type), b.Region+", "+b.Country, strconv.Itoa(b.Quantity()), location)
	}
	return t.Render()
}

func runBottleEvent(cmd *cobra.Command, ref string, action cellar.HistoryAction, quantity int, notes string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		b, err := findBottle(ctx, a.store, ref)
		if err != nil {
			return err
		}
		updated, err := b.WithEvent(action, quantity, time.Now(), notes)
		if err != nil {
			return err
		}
		if err := saveBottle(ctx, a, updated, "Update "+updated.DisplayName()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d x %s, %d left\n", green.Render(string(action)), quantity, updated.DisplayName(), updated.Quantity())
		return nil
	})
}

func newBottleConsumeCmd() *cobra.Command {
	var quantity int
	var notes string

	cmd := &cobra.Command{
		Use:   "consume <id>",
		Short: "Record bottles that were drunk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBottleEvent(cmd, args[0], cellar.ActionConsumed, quantity, notes)
		},
	}
	cmd.Flags().IntVarP(&quantity, "quantity", "n", 1, "Number of bottles")
	cmd.Flags().StringVar(&notes, "notes", "", "Tasting notes")
	return cmd
}

func newBottleEventCmd() *cobra.Command {
	var action string
	var quantity int
	var notes string

	cmd := &cobra.Command{
		Use:   "event <id>",
		Short: "Append a history event (added, consumed or removed)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBottleEvent(cmd, args[0], cellar.HistoryAction(action), quantity, notes)
		},
	}
	cmd.Flags().StringVar(&action, "action", string(cellar.ActionAdded), "added, consumed or removed")
	cmd.Flags().IntVarP(&quantity, "quantity", "n", 1, "Number of bottles")
	cmd.Flags().StringVar(&notes, "notes", "", "Notes")
	return cmd
}

func newBottleRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a bottle record from the cellar",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				b, err := findBottle(ctx, a.store, args[0])
				if err != nil {
					return err
				}
				if err := a.store.DeleteBottle(ctx, b.ID); err != nil {
					return err
				}
				if _, err := a.mgr.RecordMutation(ctx, "Remove "+b.DisplayName()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", green.Render("removed"), b.DisplayName())
				return nil
			})
		},
	}
}
