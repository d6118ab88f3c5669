package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iotic-Labs/nyx-sdk/internal/dataset"
	"github.com/Iotic-Labs/nyx-sdk/internal/nyx"
)

var searchFlags struct {
	categories  []string
	genre       string
	creator     string
	license     string
	contentType string
	include     string
	local       bool
}

var searchCmd = &cobra.Command{
	Use:   "search [text]",
	Short: "Search the marketplace",
	Long: `Search datasets across the federated network.

Without text, every dataset matching the filters is listed. --include selects
all, subscribed or not-subscribed datasets and combines freely with --local.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client()
		if err != nil {
			return err
		}
		opts := nyx.SearchOptions{
			Categories:   searchFlags.categories,
			Genre:        searchFlags.genre,
			Creator:      searchFlags.creator,
			License:      searchFlags.license,
			ContentType:  searchFlags.contentType,
			Subscription: nyx.SubscriptionState(searchFlags.include),
			LocalOnly:    searchFlags.local,
		}
		if len(args) == 1 {
			opts.Text = args[0]
		}

		datasets, err := c.Search(cmd.Context(), opts)
		if err != nil {
			return err
		}
		printDatasets(datasets)
		return nil
	},
}

var subscriptionsCmd = &cobra.Command{
	Use:   "subscriptions",
	Short: "List the datasets you are subscribed to",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client()
		if err != nil {
			return err
		}
		datasets, err := c.MySubscriptions(cmd.Context(), nyx.SearchOptions{})
		if err != nil {
			return err
		}
		printDatasets(datasets)
		return nil
	},
}

var subscribeCreator string

var subscribeCmd = &cobra.Command{
	Use:   "subscribe <name>",
	Short: "Subscribe to a dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client()
		if err != nil {
			return err
		}
		if err := c.SubscribeByName(cmd.Context(), args[0], subscribeCreator); err != nil {
			return err
		}
		fmt.Printf("Subscribed to %s/%s\n", subscribeCreator, args[0])
		return nil
	},
}

var unsubscribeCmd = &cobra.Command{
	Use:   "unsubscribe <name>",
	Short: "Remove a subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client()
		if err != nil {
			return err
		}
		if err := c.UnsubscribeByName(cmd.Context(), args[0], subscribeCreator); err != nil {
			return err
		}
		fmt.Printf("Unsubscribed from %s/%s\n", subscribeCreator, args[0])
		return nil
	},
}

var circlesCmd = &cobra.Command{
	Use:   "circles",
	Short: "List your circles and their member organizations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client()
		if err != nil {
			return err
		}
		circles, err := c.Circles(cmd.Context())
		if err != nil {
			return err
		}
		if len(circles) == 0 {
			fmt.Println("No circles")
			return nil
		}
		for _, circle := range circles {
			fmt.Printf("%s (%d organizations)\n", circle.Name, len(circle.Organizations))
			if circle.Description != "" {
				fmt.Printf("  %s\n", circle.Description)
			}
			for _, org := range circle.Organizations {
				fmt.Printf("  - %s %s\n", org.Name, org.DID)
			}
		}
		return nil
	},
}

func init() {
	f := searchCmd.Flags()
	f.StringSliceVar(&searchFlags.categories, "category", nil, "filter by category (repeatable)")
	f.StringVar(&searchFlags.genre, "genre", "", "filter by genre")
	f.StringVar(&searchFlags.creator, "creator", "", "filter by creator organization")
	f.StringVar(&searchFlags.license, "license", "", "filter by license URL")
	f.StringVar(&searchFlags.contentType, "content-type", "", "filter by content type")
	f.StringVar(&searchFlags.include, "include", string(nyx.SubscriptionAll), "all, subscribed or not-subscribed")
	f.BoolVar(&searchFlags.local, "local", false, "only search your own organization")

	for _, cmd := range []*cobra.Command{subscribeCmd, unsubscribeCmd} {
		cmd.Flags().StringVar(&subscribeCreator, "creator", "", "organization that published the dataset")
		_ = cmd.MarkFlagRequired("creator")
	}

	rootCmd.AddCommand(searchCmd, subscriptionsCmd, subscribeCmd, unsubscribeCmd, circlesCmd)
}

func printDatasets(datasets []*dataset.Dataset) {
	if len(datasets) == 0 {
		fmt.Println("No datasets found")
		return
	}
	for _, d := range datasets {
		fmt.Printf("%s [%s] by %s\n", d.Title(), d.ContentType(), d.Creator())
		fmt.Printf("  name: %s\n", d.Name())
		if len(d.Categories()) > 0 {
			fmt.Printf("  categories: %s\n", strings.Join(d.Categories(), ", "))
		}
		fmt.Printf("  url: %s\n", d.URL())
	}
	fmt.Printf("\n%d datasets\n", len(datasets))
}
