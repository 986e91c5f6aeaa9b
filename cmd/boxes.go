package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"bookmybox-cli/api"
	"bookmybox-cli/listings"

	"github.com/spf13/cobra"
)

type BoxSummary struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	Sports     string   `json:"sports"`
	Location   string   `json:"location"`
	Price      float64  `json:"price"`
	Rating     *float64 `json:"rating"`
	Status     string   `json:"status,omitempty"`
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

func summarize(listing api.Listing) BoxSummary {
	summary := BoxSummary{
		ID:       listing.ID,
		Name:     listing.Name,
		Sports:   listing.SportLabel(),
		Location: listing.Location,
		Price:    listing.Price.Float64(),
		Status:   listing.Status,
	}
	if listing.Rating != nil {
		rating := listing.Rating.Float64()
		summary.Rating = &rating
	}
	return summary
}

func boxesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "boxes",
		Aliases: []string{"box"},
		Short:   "Browse sports boxes",
	}

	cmd.AddCommand(boxesListCmd())
	cmd.AddCommand(boxesShowCmd())
	cmd.AddCommand(boxesViewCmd("featured", "List featured boxes", listings.ViewFeatured))
	cmd.AddCommand(boxesViewCmd("popular", "List popular boxes", listings.ViewPopular))
	cmd.AddCommand(boxesNearbyCmd())
	cmd.AddCommand(boxesMineCmd())
	cmd.AddCommand(boxesAddCmd())
	cmd.AddCommand(boxesReviewCmd())
	cmd.AddCommand(boxesBrowseCmd())
	return cmd
}

func bindFilterFlags(cmd *cobra.Command, f *listings.Filters) {
	cmd.Flags().StringVar(&f.Search, "search", "", "Free-text search")
	cmd.Flags().StringVar(&f.Sport, "sport", "", "Sport")
	cmd.Flags().StringVar(&f.Location, "location", "", "Location text")
	cmd.Flags().Float64Var(&f.MinPrice, "min-price", 0, "Minimum price per hour")
	cmd.Flags().Float64Var(&f.MaxPrice, "max-price", 0, "Maximum price per hour")
	cmd.Flags().Float64Var(&f.MinRating, "min-rating", 0, "Minimum rating")
}

func boxesListCmd() *cobra.Command {
	var filters listings.Filters

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Search approved boxes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if filters.MinPrice > 0 && filters.MaxPrice > 0 && filters.MinPrice > filters.MaxPrice {
				return fmt.Errorf("--min-price must not exceed --max-price")
			}
			if filters.Sport == "" && len(cfg.FavouriteSports) == 1 {
				filters.Sport = cfg.FavouriteSports[0]
			}
			if err := app.Listings.SetFilters(context.Background(), filters); err != nil {
				return err
			}
			return printBoxes(app.Listings.View(listings.ViewAll), nil)
		},
	}

	bindFilterFlags(cmd, &filters)
	return cmd
}

func boxesViewCmd(use, short string, view listings.View) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			var err error
			switch view {
			case listings.ViewFeatured:
				err = app.Listings.FetchFeatured(ctx)
			case listings.ViewPopular:
				err = app.Listings.FetchPopular(ctx)
			}
			if err != nil {
				return err
			}
			return printBoxes(app.Listings.View(view), nil)
		},
	}

	return cmd
}

func boxesNearbyCmd() *cobra.Command {
	var near string
	var radius float64

	cmd := &cobra.Command{
		Use:   "nearby",
		Short: "List boxes near a location",
		RunE: func(cmd *cobra.Command, args []string) error {
			if near == "" {
				near = cfg.DefaultLocation
			}
			if near == "" {
				return fmt.Errorf("--near is required (or set default_location in config)")
			}

			ctx := context.Background()
			lat, lon, err := resolveLocation(ctx, near)
			if err != nil {
				return err
			}
			if err := app.Listings.FetchNearby(ctx, lat, lon, radius); err != nil {
				return err
			}

			origin := api.Coordinates{Lat: lat, Lon: lon}
			placed := listings.ByDistance(origin, app.Listings.View(listings.ViewNearby))
			boxes := make([]api.Listing, 0, len(placed))
			distances := map[int64]float64{}
			for _, p := range placed {
				boxes = append(boxes, p.Listing)
				distances[p.Listing.ID] = p.DistanceKm
			}
			return printBoxes(boxes, distances)
		},
	}

	cmd.Flags().StringVar(&near, "near", "", "Location name or lat,lon")
	cmd.Flags().Float64Var(&radius, "radius", listings.DefaultRadiusKm, "Search radius in km")
	return cmd
}

func boxesMineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mine",
		Short: "List the boxes you own",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			if _, err := app.requireRole(ctx, api.RoleOwner, api.RoleAdmin); err != nil {
				return err
			}
			if err := app.Listings.FetchOwner(ctx); err != nil {
				return err
			}
			return printBoxes(app.Listings.View(listings.ViewOwner), nil)
		},
	}

	return cmd
}

func printBoxes(boxes []api.Listing, distances map[int64]float64) error {
	summaries := make([]BoxSummary, 0, len(boxes))
	for _, box := range boxes {
		summary := summarize(box)
		if d, ok := distances[box.ID]; ok {
			summary.DistanceKm = &d
		}
		summaries = append(summaries, summary)
	}

	if outputJSON {
		return writeJSON(summaries)
	}
	if len(summaries) == 0 {
		fmt.Println("No boxes found.")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
	if !outputCompact {
		header := "ID\tNAME\tSPORTS\tLOCATION\tPRICE/H\tRATING\tSTATUS"
		if distances != nil {
			header += "\tDISTANCE"
		}
		fmt.Fprintln(writer, header)
	}
	for i, summary := range summaries {
		rating := formatRating(boxes[i].Rating)
		line := fmt.Sprintf("%d\t%s\t%s\t%s\t%s\t%s\t%s", summary.ID, summary.Name, summary.Sports, summary.Location, formatINR(summary.Price), rating, summary.Status)
		if summary.DistanceKm != nil {
			line += fmt.Sprintf("\t%.1f km", *summary.DistanceKm)
		}
		fmt.Fprintln(writer, line)
	}
	return writer.Flush()
}

func boxesShowCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "show <id|alias>",
		Short: "Show a box and its free slots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveBoxID(args[0])
			if err != nil {
				return err
			}
			ctx := context.Background()
			box, err := app.Listings.Get(ctx, id)
			if err != nil {
				return err
			}

			var slots []slotState
			if date != "" {
				day, err := parseDateInput(date)
				if err != nil {
					return err
				}
				booked, err := app.Bookings.Slots(ctx, id, day.Format(dateLayout))
				if err != nil {
					return err
				}
				slots = slotStates(booked)
			}

			if outputJSON {
				return writeJSON(struct {
					Box   api.Listing `json:"box"`
					Slots []slotState `json:"slots,omitempty"`
				}{box, slots})
			}

			fmt.Printf("%s (#%d)\n", box.Name, box.ID)
			fmt.Printf("Sports: %s\n", box.SportLabel())
			fmt.Printf("Location: %s\n", box.Location)
			fmt.Printf("Price: %s per hour | Capacity: %d | Rating: %s\n", formatINR(box.Price.Float64()), box.Capacity, formatRating(box.Rating))
			if box.Description != "" {
				fmt.Println(box.Description)
			}
			if len(box.Amenities) > 0 {
				fmt.Printf("Amenities: %s\n", strings.Join(box.Amenities, ", "))
			}
			if len(box.Rules) > 0 {
				fmt.Printf("Rules: %s\n", strings.Join(box.Rules, "; "))
			}
			if box.Status != "" && box.Status != api.StatusApproved {
				fmt.Printf("Status: %s\n", box.Status)
				if box.RejectionReason != "" {
					fmt.Printf("Rejection reason: %s\n", box.RejectionReason)
				}
			}
			if slots != nil {
				printSlots(slots)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Show slot availability for a date (YYYY-MM-DD, today, tomorrow)")
	return cmd
}

func boxesAddCmd() *cobra.Command {
	var draft listings.NewListing
	var sports, amenities, rules, images string
	var lat, lon float64

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Submit a new box for approval",
		Long:  "Submit a new box for approval. Missing values are asked for step by step.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			if _, err := app.requireRole(ctx, api.RoleOwner, api.RoleAdmin); err != nil {
				return err
			}

			draft.Sports = splitList(sports)
			draft.Amenities = splitList(amenities)
			draft.Rules = splitList(rules)
			draft.Images = splitList(images)
			if cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon") {
				draft.Latitude, draft.Longitude = &lat, &lon
			}

			wizard := listings.NewWizard()
			wizard.Draft = draft
			for wizard.Step() < listings.StepReview {
				if wizard.Next() {
					continue
				}
				if err := fillStep(wizard); err != nil {
					return err
				}
				if !wizard.Next() {
					return stepError(wizard)
				}
			}

			listing, err := wizard.Submit()
			if err != nil {
				return stepError(wizard)
			}
			if err := app.Listings.AddListing(ctx, listing); err != nil {
				return describeFailure(err)
			}
			fmt.Printf("Submitted %s for approval.\n", listing.Name)
			return printBoxes(app.Listings.View(listings.ViewOwner), nil)
		},
	}

	cmd.Flags().StringVar(&draft.Name, "name", "", "Box name")
	cmd.Flags().StringVar(&draft.Description, "description", "", "Short description")
	cmd.Flags().StringVar(&draft.FullDescription, "full-description", "", "Full description")
	cmd.Flags().StringVar(&sports, "sports", "", "Comma-separated sports")
	cmd.Flags().Float64Var(&draft.Price, "price", 0, "Price per hour")
	cmd.Flags().IntVar(&draft.Capacity, "capacity", 0, "Capacity")
	cmd.Flags().StringVar(&draft.Location, "location", "", "Address")
	cmd.Flags().StringVar(&amenities, "amenities", "", "Comma-separated amenities")
	cmd.Flags().StringVar(&rules, "rules", "", "Comma-separated rules")
	cmd.Flags().StringVar(&images, "images", "", "Comma-separated image paths (the first is uploaded)")
	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "Longitude")
	return cmd
}

var wizardFields = []string{"name", "description", "sports", "price", "capacity", "location", "amenities", "images"}

// fillStep prompts for the fields the current wizard step rejected.
func fillStep(w *listings.Wizard) error {
	rejected := w.Errors()
	for _, field := range wizardFields {
		if _, ok := rejected[field]; !ok {
			continue
		}
		fmt.Fprintln(os.Stderr, rejected[field])
		var err error
		var value string
		switch field {
		case "name":
			w.Draft.Name, err = prompt("Box name: ")
		case "description":
			w.Draft.Description, err = prompt("Description: ")
		case "sports":
			value, err = prompt("Sports (comma-separated): ")
			w.Draft.Sports = splitList(value)
		case "price":
			value, err = prompt("Price per hour: ")
			w.Draft.Price, _ = strconv.ParseFloat(value, 64)
		case "capacity":
			value, err = prompt("Capacity: ")
			w.Draft.Capacity, _ = strconv.Atoi(value)
		case "location":
			w.Draft.Location, err = prompt("Location: ")
		case "amenities":
			value, err = prompt("Amenities (comma-separated): ")
			w.Draft.Amenities = splitList(value)
		case "images":
			value, err = prompt("Image paths (comma-separated): ")
			w.Draft.Images = splitList(value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func stepError(w *listings.Wizard) error {
	return describeFailure(&api.Failure{Message: listings.ErrIncomplete.Error(), Fields: w.Errors()})
}

func boxesReviewCmd() *cobra.Command {
	var rating int
	var comment string

	cmd := &cobra.Command{
		Use:   "review <id|alias>",
		Short: "Review a box",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveBoxID(args[0])
			if err != nil {
				return err
			}
			ctx := context.Background()
			if _, err := app.requireUser(ctx); err != nil {
				return err
			}
			review, err := app.Listings.AddReview(ctx, id, rating, comment)
			if err != nil {
				return describeFailure(err)
			}
			if outputJSON {
				return writeJSON(review)
			}
			fmt.Printf("Thanks! Your %d-star review was posted.\n", review.Rating)
			return nil
		},
	}

	cmd.Flags().IntVar(&rating, "rating", 5, "Rating from 1 to 5")
	cmd.Flags().StringVar(&comment, "comment", "", "Comment")
	return cmd
}

func boxesBrowseCmd() *cobra.Command {
	var window time.Duration

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Refine a box search interactively",
		Long: `Refine a box search interactively. Each line sets one filter:
  search <text> | sport <name> | location <text> | min <price> | max <price> | rating <min>
  clear | quit
Changes typed in quick succession are fetched once.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			var printMu sync.Mutex
			debouncer := listings.NewDebouncer(ctx, app.Listings, window, func(f listings.Filters, err error) {
				printMu.Lock()
				defer printMu.Unlock()
				if err != nil {
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
					return
				}
				boxes := app.Listings.View(listings.ViewAll)
				fmt.Printf("%d boxes for %s\n", len(boxes), describeFilters(f))
				if !outputCompact {
					_ = printBoxes(boxes, nil)
				}
			})

			err := runBrowse(os.Stdin, debouncer)
			debouncer.Flush()
			debouncer.Stop()
			return err
		},
	}

	cmd.Flags().DurationVar(&window, "debounce", listings.DefaultDebounce, "Quiet period before a search is sent")
	return cmd
}

func runBrowse(input io.Reader, debouncer *listings.Debouncer) error {
	scanner := bufio.NewScanner(input)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		key, value, _ := strings.Cut(line, " ")
		value = strings.TrimSpace(value)
		number, _ := strconv.ParseFloat(value, 64)

		switch strings.ToLower(key) {
		case "quit", "exit":
			return nil
		case "clear":
			debouncer.Update(func(f *listings.Filters) { *f = listings.Filters{} })
		case "search":
			debouncer.Update(func(f *listings.Filters) { f.Search = value })
		case "sport":
			debouncer.Update(func(f *listings.Filters) { f.Sport = value })
		case "location":
			debouncer.Update(func(f *listings.Filters) { f.Location = value })
		case "min":
			debouncer.Update(func(f *listings.Filters) { f.MinPrice = number })
		case "max":
			debouncer.Update(func(f *listings.Filters) { f.MaxPrice = number })
		case "rating":
			debouncer.Update(func(f *listings.Filters) { f.MinRating = number })
		default:
			fmt.Fprintf(os.Stderr, "unknown filter %q\n", key)
		}
	}
	return scanner.Err()
}

func describeFilters(f listings.Filters) string {
	parts := []string{}
	if f.Search != "" {
		parts = append(parts, fmt.Sprintf("search=%q", f.Search))
	}
	if f.Sport != "" {
		parts = append(parts, fmt.Sprintf("sport=%q", f.Sport))
	}
	if f.Location != "" {
		parts = append(parts, fmt.Sprintf("location=%q", f.Location))
	}
	if f.MinPrice > 0 {
		parts = append(parts, fmt.Sprintf("min=%.0f", f.MinPrice))
	}
	if f.MaxPrice > 0 {
		parts = append(parts, fmt.Sprintf("max=%.0f", f.MaxPrice))
	}
	if f.MinRating > 0 {
		parts = append(parts, fmt.Sprintf("rating>=%.1f", f.MinRating))
	}
	if len(parts) == 0 {
		return "no filters"
	}
	return strings.Join(parts, " ")
}
