package thriftapi

import (
	"context"
	"errors"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/rs/zerolog"

	"drone-dispatch/internal/auth"
	"drone-dispatch/internal/domain"
	"drone-dispatch/internal/service"
	"drone-dispatch/internal/simulation"
)

// The processor speaks this IDL without generated code:
//
//	struct Point { 1: double x, 2: double y }
//	struct TokenRequest { 1: string name, 2: string role }
//	struct TokenResponse { 1: string token, 2: i64 expiresAt }
//	struct AuthRequest { 1: string token }
//	struct SubmitOrderRequest { 1: string token, 2: double x, 3: double y, 4: double weightKg, 5: string priority }
//	struct OrderIDRequest { 1: string token, 2: string orderId }
//	struct Order { 1: string id, 2: string userId, 3: Point destination, 4: double weightKg, 5: string priority,
//	               6: string status, 7: optional i32 assignedDroneId, 8: i64 createdAt, 9: i64 updatedAt,
//	               10: optional i64 deliveredAt }
//	struct OrderView { 1: Order order, 2: optional Point currentLocation, 3: double roundTripKm, 4: optional i64 etaSteps }
//	struct Route { 1: i32 droneId, 2: list<string> orderIds }
//	struct Plan { 1: list<Route> routes, 2: list<string> unserved, 3: i32 assigned }
//	struct DroneStats { 1: i32 droneId, 2: i32 orders, 3: double batteryConsumed, 4: i32 recharges }
//	struct Report { 1: i32 deliveries, 2: double totalDistanceKm, 3: double meanDistanceKm,
//	                4: i32 mostEfficientDroneId, 5: bool emptyPlan, 6: list<DroneStats> drones }
//
//	service Dispatch {
//	  TokenResponse IssueToken(1: TokenRequest request)
//	  Order SubmitOrder(1: SubmitOrderRequest request)
//	  OrderView GetOrder(1: OrderIDRequest request)
//	  Plan PlanCycle(1: AuthRequest request)
//	  Report RunBatch(1: AuthRequest request)
//	}
type Processor struct {
	svc          *service.Service
	auth         *auth.Authenticator
	log          zerolog.Logger
	processorMap map[string]thrift.TProcessorFunction
}

// reply writes the success value of a call.
type reply struct {
	fieldType thrift.TType
	write     func(ctx context.Context, out thrift.TProtocol) error
}

type call func(ctx context.Context, in thrift.TProtocol) (reply, error)

type processorFunc func(ctx context.Context, seqID int32, in, out thrift.TProtocol) (bool, thrift.TException)

func (f processorFunc) Process(ctx context.Context, seqID int32, in, out thrift.TProtocol) (bool, thrift.TException) {
	return f(ctx, seqID, in, out)
}

// decodeError marks a malformed request.
type decodeError struct{ err error }

func (e decodeError) Error() string { return e.err.Error() }
func (e decodeError) Unwrap() error { return e.err }

func NewProcessor(svc *service.Service, authenticator *auth.Authenticator, log zerolog.Logger) *Processor {
	p := &Processor{svc: svc, auth: authenticator, log: log}
	p.processorMap = map[string]thrift.TProcessorFunction{
		"IssueToken":  p.method("IssueToken", p.issueToken),
		"SubmitOrder": p.method("SubmitOrder", p.submitOrder),
		"GetOrder":    p.method("GetOrder", p.getOrder),
		"PlanCycle":   p.method("PlanCycle", p.planCycle),
		"RunBatch":    p.method("RunBatch", p.runBatch),
	}
	return p
}

func (p *Processor) ProcessorMap() map[string]thrift.TProcessorFunction {
	return p.processorMap
}

func (p *Processor) AddToProcessorMap(name string, processor thrift.TProcessorFunction) {
	p.processorMap[name] = processor
}

func (p *Processor) Process(ctx context.Context, in, out thrift.TProtocol) (bool, thrift.TException) {
	name, messageType, seqID, err := in.ReadMessageBegin(ctx)
	if err != nil {
		return false, thrift.NewTApplicationException(thrift.PROTOCOL_ERROR, err.Error())
	}
	if messageType != thrift.CALL && messageType != thrift.ONEWAY {
		return p.writeException(ctx, out, name, seqID, thrift.NewTApplicationException(thrift.INVALID_MESSAGE_TYPE_EXCEPTION, "invalid message type"))
	}
	processor, ok := p.processorMap[name]
	if !ok {
		_ = in.Skip(ctx, thrift.STRUCT)
		_ = in.ReadMessageEnd(ctx)
		return p.writeException(ctx, out, name, seqID, thrift.NewTApplicationException(thrift.UNKNOWN_METHOD, "unknown method "+name))
	}
	return processor.Process(ctx, seqID, in, out)
}

func (p *Processor) method(name string, fn call) thrift.TProcessorFunction {
	return processorFunc(func(ctx context.Context, seqID int32, in, out thrift.TProtocol) (bool, thrift.TException) {
		r, err := fn(ctx, in)
		if err != nil {
			appErr := mapError(err)
			if appErr.TypeId() == thrift.INTERNAL_ERROR {
				p.log.Error().Err(err).Str("method", name).Msg("thrift call failed")
			}
			return p.writeException(ctx, out, name, seqID, appErr)
		}
		return p.writeReply(ctx, out, name, seqID, r)
	})
}

func (p *Processor) issueToken(ctx context.Context, in thrift.TProtocol) (reply, error) {
	var name, role string
	if err := readArgs(ctx, in, func(id int16, t thrift.TType) (bool, error) {
		var err error
		switch {
		case id == 1 && t == thrift.STRING:
			name, err = in.ReadString(ctx)
		case id == 2 && t == thrift.STRING:
			role, err = in.ReadString(ctx)
		default:
			return false, nil
		}
		return true, err
	}); err != nil {
		return reply{}, decodeError{err}
	}
	token, exp, err := p.auth.IssueToken(name, role)
	if err != nil {
		return reply{}, err
	}
	return reply{fieldType: thrift.STRUCT, write: func(ctx context.Context, out thrift.TProtocol) error {
		w := newStructWriter(ctx, out, "TokenResponse")
		w.str(1, "token", token)
		w.i64(2, "expiresAt", exp.Unix())
		return w.close()
	}}, nil
}

func (p *Processor) submitOrder(ctx context.Context, in thrift.TProtocol) (reply, error) {
	var (
		token, priority string
		x, y, weight    float64
	)
	if err := readArgs(ctx, in, func(id int16, t thrift.TType) (bool, error) {
		var err error
		switch {
		case id == 1 && t == thrift.STRING:
			token, err = in.ReadString(ctx)
		case id == 2 && t == thrift.DOUBLE:
			x, err = in.ReadDouble(ctx)
		case id == 3 && t == thrift.DOUBLE:
			y, err = in.ReadDouble(ctx)
		case id == 4 && t == thrift.DOUBLE:
			weight, err = in.ReadDouble(ctx)
		case id == 5 && t == thrift.STRING:
			priority, err = in.ReadString(ctx)
		default:
			return false, nil
		}
		return true, err
	}); err != nil {
		return reply{}, decodeError{err}
	}
	claims, err := p.auth.Authorize("Bearer "+token, domain.RoleEndUser, domain.RoleAdmin)
	if err != nil {
		return reply{}, err
	}
	prio, err := domain.ParsePriority(priority)
	if err != nil {
		return reply{}, err
	}
	order, err := p.svc.SubmitOrder(ctx, claims.Subject, domain.Position{X: x, Y: y}, weight, prio)
	if err != nil {
		return reply{}, err
	}
	return reply{fieldType: thrift.STRUCT, write: writeOrder(order)}, nil
}

func (p *Processor) getOrder(ctx context.Context, in thrift.TProtocol) (reply, error) {
	var token, orderID string
	if err := readArgs(ctx, in, func(id int16, t thrift.TType) (bool, error) {
		var err error
		switch {
		case id == 1 && t == thrift.STRING:
			token, err = in.ReadString(ctx)
		case id == 2 && t == thrift.STRING:
			orderID, err = in.ReadString(ctx)
		default:
			return false, nil
		}
		return true, err
	}); err != nil {
		return reply{}, decodeError{err}
	}
	claims, err := p.auth.Authorize("Bearer "+token, domain.RoleEndUser, domain.RoleAdmin)
	if err != nil {
		return reply{}, err
	}
	view, err := p.svc.GetOrder(ctx, claims.Subject, claims.Role, orderID)
	if err != nil {
		return reply{}, err
	}
	return reply{fieldType: thrift.STRUCT, write: writeOrderView(view)}, nil
}

func (p *Processor) planCycle(ctx context.Context, in thrift.TProtocol) (reply, error) {
	if err := p.authorizeAdmin(ctx, in); err != nil {
		return reply{}, err
	}
	plan, err := p.svc.PlanCycle(ctx)
	if err != nil {
		return reply{}, err
	}
	return reply{fieldType: thrift.STRUCT, write: writePlan(plan)}, nil
}

func (p *Processor) runBatch(ctx context.Context, in thrift.TProtocol) (reply, error) {
	if err := p.authorizeAdmin(ctx, in); err != nil {
		return reply{}, err
	}
	report, err := p.svc.RunBatch(ctx)
	if err != nil {
		return reply{}, err
	}
	return reply{fieldType: thrift.STRUCT, write: writeReport(report)}, nil
}

func (p *Processor) authorizeAdmin(ctx context.Context, in thrift.TProtocol) error {
	var token string
	if err := readArgs(ctx, in, func(id int16, t thrift.TType) (bool, error) {
		if id != 1 || t != thrift.STRING {
			return false, nil
		}
		var err error
		token, err = in.ReadString(ctx)
		return true, err
	}); err != nil {
		return decodeError{err}
	}
	_, err := p.auth.Authorize("Bearer "+token, domain.RoleAdmin)
	return err
}

func (p *Processor) writeReply(ctx context.Context, out thrift.TProtocol, method string, seqID int32, r reply) (bool, thrift.TException) {
	err := func() error {
		if err := out.WriteMessageBegin(ctx, method, thrift.REPLY, seqID); err != nil {
			return err
		}
		w := newStructWriter(ctx, out, method+"_result")
		w.field("success", r.fieldType, 0, func() error { return r.write(ctx, out) })
		if err := w.close(); err != nil {
			return err
		}
		if err := out.WriteMessageEnd(ctx); err != nil {
			return err
		}
		return out.Flush(ctx)
	}()
	if err != nil {
		return false, thrift.NewTApplicationException(thrift.PROTOCOL_ERROR, err.Error())
	}
	return true, nil
}

func (p *Processor) writeException(ctx context.Context, out thrift.TProtocol, method string, seqID int32, appErr thrift.TApplicationException) (bool, thrift.TException) {
	_ = out.WriteMessageBegin(ctx, method, thrift.EXCEPTION, seqID)
	_ = appErr.Write(ctx, out)
	_ = out.WriteMessageEnd(ctx)
	_ = out.Flush(ctx)
	return false, appErr
}

func mapError(err error) thrift.TApplicationException {
	var decodeErr decodeError
	switch {
	case errors.As(err, &decodeErr):
		return thrift.NewTApplicationException(thrift.PROTOCOL_ERROR, decodeErr.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		return thrift.NewTApplicationException(thrift.PROTOCOL_ERROR, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		return thrift.NewTApplicationException(thrift.PROTOCOL_ERROR, "forbidden")
	case errors.Is(err, domain.ErrNotFound):
		return thrift.NewTApplicationException(thrift.PROTOCOL_ERROR, "not found")
	case errors.Is(err, domain.ErrSimulationRunning):
		return thrift.NewTApplicationException(thrift.PROTOCOL_ERROR, "simulation running")
	case errors.Is(err, domain.ErrConflict):
		return thrift.NewTApplicationException(thrift.PROTOCOL_ERROR, "conflict")
	case errors.Is(err, domain.ErrInvalid):
		return thrift.NewTApplicationException(thrift.PROTOCOL_ERROR, err.Error())
	default:
		return thrift.NewTApplicationException(thrift.INTERNAL_ERROR, "internal error")
	}
}

func writeOrder(order *domain.Order) func(ctx context.Context, out thrift.TProtocol) error {
	return func(ctx context.Context, out thrift.TProtocol) error {
		w := newStructWriter(ctx, out, "Order")
		w.str(1, "id", order.ID)
		w.str(2, "userId", order.UserID)
		w.nested(3, "destination", writePoint(order.Position.X, order.Position.Y))
		w.double(4, "weightKg", order.WeightKg)
		w.str(5, "priority", string(order.Priority))
		w.str(6, "status", string(order.Status))
		if order.AssignedDroneID != nil {
			w.i32(7, "assignedDroneId", int32(*order.AssignedDroneID))
		}
		w.i64(8, "createdAt", order.CreatedAt.Unix())
		w.i64(9, "updatedAt", order.UpdatedAt.Unix())
		if order.DeliveredAt != nil {
			w.i64(10, "deliveredAt", order.DeliveredAt.Unix())
		}
		return w.close()
	}
}

func writeOrderView(view *service.OrderView) func(ctx context.Context, out thrift.TProtocol) error {
	return func(ctx context.Context, out thrift.TProtocol) error {
		w := newStructWriter(ctx, out, "OrderView")
		w.nested(1, "order", writeOrder(view.Order))
		if view.CurrentLocation != nil {
			w.nested(2, "currentLocation", writePoint(view.CurrentLocation.X, view.CurrentLocation.Y))
		}
		w.double(3, "roundTripKm", view.RoundTripKm)
		if view.ETASteps != nil {
			w.i64(4, "etaSteps", *view.ETASteps)
		}
		return w.close()
	}
}

func writePlan(plan *domain.Plan) func(ctx context.Context, out thrift.TProtocol) error {
	var routes []domain.Route
	for _, r := range plan.Routes {
		if len(r.OrderIDs) > 0 {
			routes = append(routes, r)
		}
	}
	return func(ctx context.Context, out thrift.TProtocol) error {
		w := newStructWriter(ctx, out, "Plan")
		w.structs(1, "routes", len(routes), func(i int, ctx context.Context, out thrift.TProtocol) error {
			rw := newStructWriter(ctx, out, "Route")
			rw.i32(1, "droneId", int32(routes[i].DroneID))
			rw.strs(2, "orderIds", routes[i].OrderIDs)
			return rw.close()
		})
		w.strs(2, "unserved", plan.Unserved)
		w.i32(3, "assigned", int32(plan.Assigned()))
		return w.close()
	}
}

func writeReport(report *simulation.Report) func(ctx context.Context, out thrift.TProtocol) error {
	return func(ctx context.Context, out thrift.TProtocol) error {
		w := newStructWriter(ctx, out, "Report")
		w.i32(1, "deliveries", int32(report.Deliveries))
		w.double(2, "totalDistanceKm", report.TotalDistanceKm)
		w.double(3, "meanDistanceKm", report.MeanDistanceKm)
		w.i32(4, "mostEfficientDroneId", int32(report.MostEfficientDroneID))
		w.boolean(5, "emptyPlan", report.EmptyPlan)
		w.structs(6, "drones", len(report.Drones), func(i int, ctx context.Context, out thrift.TProtocol) error {
			d := report.Drones[i]
			dw := newStructWriter(ctx, out, "DroneStats")
			dw.i32(1, "droneId", int32(d.DroneID))
			dw.i32(2, "orders", int32(d.Orders))
			dw.double(3, "batteryConsumed", d.BatteryConsumed)
			dw.i32(4, "recharges", int32(d.Recharges))
			return dw.close()
		})
		return w.close()
	}
}
