package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"drone-dispatch/internal/domain"
	"drone-dispatch/internal/simulation"
)

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func printPlan(w io.Writer, plan *domain.Plan, book map[string]*domain.Order) {
	fmt.Fprintf(w, "plan: %d assigned, %d unserved\n", plan.Assigned(), len(plan.Unserved))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DRONE\tSTOPS\tWEIGHT\tDISTANCE")
	for _, r := range plan.Routes {
		if len(r.OrderIDs) == 0 {
			continue
		}
		stops := make([]*domain.Order, 0, len(r.OrderIDs))
		labels := ""
		for i, id := range r.OrderIDs {
			if i > 0 {
				labels += " -> "
			}
			o, ok := book[id]
			if !ok {
				labels += shortID(id) + "(?)"
				continue
			}
			stops = append(stops, o)
			labels += fmt.Sprintf("%s(%.0f,%.0f)", shortID(id), o.Position.X, o.Position.Y)
		}
		fmt.Fprintf(tw, "%d\t%s\t%.1fkg\t%.2fkm\n", r.DroneID, labels, domain.RouteWeight(stops), domain.RouteDistance(stops))
	}
	tw.Flush()
	for _, id := range plan.Unserved {
		fmt.Fprintf(w, "unserved: %s\n", shortID(id))
	}
}

func printReport(w io.Writer, report *simulation.Report) {
	if report.EmptyPlan {
		fmt.Fprintln(w, "no orders were allocated; nothing to simulate")
		return
	}
	for _, n := range report.Notices {
		fmt.Fprintf(w, "  %s\n", n)
	}
	fmt.Fprintf(w, "deliveries: %d\n", report.Deliveries)
	fmt.Fprintf(w, "total distance: %.2fkm\n", report.TotalDistanceKm)
	fmt.Fprintf(w, "mean distance per delivery: %.2fkm\n", report.MeanDistanceKm)
	if report.MostEfficientDroneID != 0 {
		fmt.Fprintf(w, "most efficient drone: %d\n", report.MostEfficientDroneID)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DRONE\tORDERS\tBATTERY USED\tRECHARGES")
	for _, d := range report.Drones {
		fmt.Fprintf(tw, "%d\t%d\t%.1f%%\t%d\n", d.DroneID, d.Orders, d.BatteryConsumed, d.Recharges)
	}
	tw.Flush()
}

func printSummary(w io.Writer, summary simulation.Summary) {
	fmt.Fprintf(w, "simulation finished after %d steps: %d delivered, %d forced returns, %d recharges\n",
		summary.Steps, summary.Deliveries, summary.ForcedReturns, summary.Recharges)
	for _, id := range summary.Dropped {
		fmt.Fprintf(w, "dropped: %s\n", shortID(id))
	}
}
