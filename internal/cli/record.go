package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/oceanbase/finmem-go/pkg/core"
	"github.com/oceanbase/finmem-go/pkg/record"
)

func newMarketCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "market",
		Short: "Record a market observation",
		Args:  cobra.NoArgs,
	}

	f := cmd.Flags()
	f.StringP("symbol", "s", "", "Ticker symbol (required)")
	f.Float64P("price", "p", 0, "Observed price (required)")
	f.Float64("volume", 0, "Traded volume")
	f.Float64("market-cap", 0, "Market capitalisation")
	f.Float64("sentiment", 0, "Sentiment score in [-1, 1]")
	f.StringArray("indicator", nil, "Technical indicator as key=value (repeatable)")
	f.StringArray("meta", nil, "Metadata as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("symbol")
	_ = cmd.MarkFlagRequired("price")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		symbol, _ := f.GetString("symbol")
		price, _ := f.GetFloat64("price")
		volume, _ := f.GetFloat64("volume")
		indicatorPairs, _ := f.GetStringArray("indicator")
		metaPairs, _ := f.GetStringArray("meta")

		indicators, err := parseMetadata(indicatorPairs)
		if err != nil {
			return err
		}
		meta, err := parseMetadata(metaPairs)
		if err != nil {
			return err
		}

		obs := &record.MarketObservation{
			Symbol:     symbol,
			Price:      price,
			Volume:     volume,
			Indicators: record.MetadataFrom(indicators),
			Metadata:   record.MetadataFrom(meta),
		}
		if f.Changed("market-cap") {
			v, _ := f.GetFloat64("market-cap")
			obs.MarketCap = &v
		}
		if f.Changed("sentiment") {
			v, _ := f.GetFloat64("sentiment")
			obs.SentimentScore = &v
		}

		return g.withManager(cmd, func(m *core.Manager) error {
			id, err := m.StoreMarket(cmd.Context(), obs)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{"id": id})
		})
	}
	return cmd
}

func newDecideCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Record a trading decision",
		Args:  cobra.NoArgs,
	}

	f := cmd.Flags()
	f.StringP("symbol", "s", "", "Ticker symbol (required)")
	f.StringP("action", "a", "", "Action label such as BUY, SELL or HOLD (required)")
	f.String("confidence", record.ConfidenceMedium, "Confidence label")
	f.StringP("reasoning", "r", "", "Rationale for the decision")
	f.Float64("expected", 0, "Expected return as a fraction")
	f.StringArray("risk", nil, "Risk attribute as key=value (repeatable)")
	f.StringArray("meta", nil, "Metadata as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("symbol")
	_ = cmd.MarkFlagRequired("action")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		symbol, _ := f.GetString("symbol")
		action, _ := f.GetString("action")
		confidence, _ := f.GetString("confidence")
		reasoning, _ := f.GetString("reasoning")
		expected, _ := f.GetFloat64("expected")
		riskPairs, _ := f.GetStringArray("risk")
		metaPairs, _ := f.GetStringArray("meta")

		risk, err := parseMetadata(riskPairs)
		if err != nil {
			return err
		}
		meta, err := parseMetadata(metaPairs)
		if err != nil {
			return err
		}

		d := &record.Decision{
			Symbol:         symbol,
			Action:         action,
			Confidence:     confidence,
			Reasoning:      reasoning,
			ExpectedReturn: expected,
			RiskAssessment: record.MetadataFrom(risk),
			Metadata:       record.MetadataFrom(meta),
		}

		return g.withManager(cmd, func(m *core.Manager) error {
			id, err := m.StoreDecision(cmd.Context(), d)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{"id": id})
		})
	}
	return cmd
}

func newConverseCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "converse",
		Short: "Start a conversation or append a message to one",
		Args:  cobra.NoArgs,
	}

	f := cmd.Flags()
	f.String("id", "", "Conversation id to append to (empty starts a new conversation)")
	f.StringP("topic", "t", "", "Topic of a new conversation")
	f.String("role", string(record.RoleUser), "Message author: user or assistant")
	f.StringP("message", "m", "", "Message content (required)")
	_ = cmd.MarkFlagRequired("message")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		id, _ := f.GetString("id")
		topic, _ := f.GetString("topic")
		roleName, _ := f.GetString("role")
		content, _ := f.GetString("message")

		role := record.Role(roleName)
		if !role.Valid() {
			return fmt.Errorf("unknown role %q", roleName)
		}

		return g.withManager(cmd, func(m *core.Manager) error {
			ctx := cmd.Context()
			if id != "" {
				conv, found, err := m.AppendMessage(ctx, id, role, content)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("conversation %s not found", id)
				}
				return printJSON(cmd, conv)
			}

			conv := record.NewConversation(topic)
			if err := conv.Append(role, content, time.Now().UTC()); err != nil {
				return err
			}
			if _, err := m.StoreConversation(ctx, conv); err != nil {
				return err
			}
			return printJSON(cmd, conv)
		})
	}
	return cmd
}
