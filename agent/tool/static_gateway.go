package tool

import (
	"context"
	"fmt"

	contractx "github.com/casavia/concierge/agent/contract"
)

// StaticGateway is an in-process ToolGateway with canned venue data. It backs
// the demo binary and tests; production deployments inject the real domain
// collaborator instead.
type StaticGateway struct{}

// NewStaticGateway returns a gateway serving fixed sample data.
func NewStaticGateway() *StaticGateway { return &StaticGateway{} }

func (g *StaticGateway) ExecuteTool(_ context.Context, tool string, params map[string]any, venueID int64) (contractx.ToolResult, error) {
	switch tool {
	case ToolCheckAvailability:
		size, _ := NumberParam(params, "party_size")
		return contractx.ToolResult{
			Tool: tool,
			Kind: contractx.KindAvailability,
			Availability: &contractx.AvailabilityPayload{
				Date:      StringParam(params, "date"),
				Time:      StringParam(params, "time"),
				PartySize: size,
				Available: size > 0 && size <= 8,
				Alternatives: []string{
					"18:00", "21:30",
				},
			},
		}, nil
	case ToolGetMenu:
		category := StringParam(params, "category")
		return contractx.ToolResult{
			Tool: tool,
			Kind: contractx.KindMenu,
			Menu: &contractx.MenuPayload{
				Category: category,
				Items: []contractx.MenuItem{
					{Name: "Burrata with heirloom tomato", Category: "starters", Price: 14.5},
					{Name: "Tagliatelle al ragù", Category: "mains", Price: 22},
					{Name: "Grilled branzino", Category: "mains", Price: 28},
					{Name: "Tiramisù", Category: "desserts", Price: 9},
				},
			},
		}, nil
	case ToolGetCelebrationPackages:
		occasion := StringParam(params, "occasion")
		return contractx.ToolResult{
			Tool: tool,
			Kind: contractx.KindCelebration,
			Celebration: &contractx.CelebrationPayload{
				Occasion: occasion,
				Packages: []contractx.CelebrationPackage{
					{Name: "Candlelight", Occasion: "anniversary", Price: 45, Description: "Sparkling wine, dessert platter, table flowers."},
					{Name: "Birthday Royale", Occasion: "birthday", Price: 60, Description: "Cake, decorations, a toast for the table."},
				},
			},
		}, nil
	case ToolGetRestaurantInfo:
		topic := StringParam(params, "topic")
		return contractx.ToolResult{
			Tool: tool,
			Kind: contractx.KindInfo,
			Info: &contractx.InfoPayload{
				Topic:  topic,
				Answer: "We are open Tuesday to Sunday, 17:00 to 23:00, at 12 Harbour Lane.",
			},
		}, nil
	case ToolGeneralInquiry:
		return contractx.ToolResult{
			Tool: tool,
			Kind: contractx.KindInfo,
			Info: &contractx.InfoPayload{
				Answer: "Happy to help with menus, bookings, celebrations or venue questions. What do you need?",
			},
		}, nil
	default:
		return contractx.ToolResult{}, fmt.Errorf("tool=%s is not served by the static gateway (venue=%d)", tool, venueID)
	}
}
