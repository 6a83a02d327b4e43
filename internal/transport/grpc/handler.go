package grpc

import (
	"context"

	"warehouse-service/internal/models"
	"warehouse-service/internal/service"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName: полное имя сервиса. Все запросы и ответы передаются как google.protobuf.Struct;
// схема полей описана в proto/warehouse/v1/ledger.proto.
//
//	Receive, Pick      {product_id | product_code, location_id | location_code, quantity, reference?, notes?, file?{path,name,mime,size}} -> level
//	Adjust             {product_id | product_code, location_id | location_code, delta, reason} -> level
//	GetStock           {product_id | product_code, location_id | location_code} -> level
//	ListStock          {product_id} -> {slots: [level + product_id, location_id]}
//	ListMovements      {product_id?, location_id?, type?, reference?, limit?, offset?} -> {movements, total}
//	CreateOrder        {code, warehouse_id, status?, customer_name?, priority?, due_date?, notes?} -> order
//	GetOrder           {id} -> order
//	ListOrders         {status?, warehouse_id?, limit?, offset?} -> {orders, total}
//	UpdateOrder        {id, status?, customer_name?, priority?, due_date? (null снимает), notes?} -> order
//	DeleteOrder        {id} -> {}
//	AddOrderItem       {order_id, product_id | product_code, location_id | location_code, quantity} -> item
//	RemoveOrderItem    {order_id, item_id} -> item
//
// level = {quantity, reserved, available}; количества передаются строками, на входе принимается и число.
// Время в RFC 3339.
const ServiceName = "warehouse.v1.LedgerService"

type LedgerAPI interface {
	Receive(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Pick(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Adjust(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetStock(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListStock(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListMovements(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

	CreateOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListOrders(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	UpdateOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	DeleteOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	AddOrderItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	RemoveOrderItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type Handler struct {
	inv      service.InventoryService
	prod     service.ProductionService
	resolver service.Resolver
}

func NewHandler(inv service.InventoryService, prod service.ProductionService, resolver service.Resolver) *Handler {
	return &Handler{inv: inv, prod: prod, resolver: resolver}
}

// slotOf: ячейка задаётся id (product_id, location_id) или кодами со сканера
// (product_code как SKU или reference code, location_code). id приоритетнее кода.
func (h *Handler) slotOf(ctx context.Context, req *structpb.Struct) (uuid.UUID, uuid.UUID, error) {
	productID, err := uuidOf(req, "product_id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if productID == uuid.Nil && str(req, "product_code") != "" {
		if productID, err = h.resolver.ProductByCode(ctx, str(req, "product_code")); err != nil {
			return uuid.Nil, uuid.Nil, err
		}
	}
	locationID, err := uuidOf(req, "location_id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if locationID == uuid.Nil && str(req, "location_code") != "" {
		if locationID, err = h.resolver.LocationByCode(ctx, str(req, "location_code")); err != nil {
			return uuid.Nil, uuid.Nil, err
		}
	}
	return productID, locationID, nil
}

func Register(s grpc.ServiceRegistrar, h LedgerAPI) {
	s.RegisterService(&ledgerServiceDesc, h)
}

type method func(LedgerAPI, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call method) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			api := srv.(LedgerAPI)
			if interceptor == nil {
				return call(api, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(api, ctx, req.(*structpb.Struct))
			})
		},
	}
}

var ledgerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerAPI)(nil),
	Methods: []grpc.MethodDesc{
		unary("Receive", LedgerAPI.Receive),
		unary("Pick", LedgerAPI.Pick),
		unary("Adjust", LedgerAPI.Adjust),
		unary("GetStock", LedgerAPI.GetStock),
		unary("ListStock", LedgerAPI.ListStock),
		unary("ListMovements", LedgerAPI.ListMovements),
		unary("CreateOrder", LedgerAPI.CreateOrder),
		unary("GetOrder", LedgerAPI.GetOrder),
		unary("ListOrders", LedgerAPI.ListOrders),
		unary("UpdateOrder", LedgerAPI.UpdateOrder),
		unary("DeleteOrder", LedgerAPI.DeleteOrder),
		unary("AddOrderItem", LedgerAPI.AddOrderItem),
		unary("RemoveOrderItem", LedgerAPI.RemoveOrderItem),
	},
	Streams: []grpc.StreamDesc{},
}

func (h *Handler) Receive(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	productID, locationID, err := h.slotOf(ctx, req)
	if err != nil {
		return nil, err
	}
	qty, err := quantityOf(req, "quantity")
	if err != nil {
		return nil, err
	}
	meta := service.ReceiveMeta{Notes: str(req, "notes")}
	if f := req.GetFields()["file"].GetStructValue(); f != nil {
		meta.File = &service.AttachedFile{
			Path: str(f, "path"),
			Name: str(f, "name"),
			Mime: str(f, "mime"),
			Size: int64(field(f, "size").GetNumberValue()),
		}
	}
	level, err := h.inv.Receive(ctx, productID, locationID, qty, str(req, "reference"), meta)
	if err != nil {
		return nil, err
	}
	return reply(levelMap(level))
}

func (h *Handler) Pick(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	productID, locationID, err := h.slotOf(ctx, req)
	if err != nil {
		return nil, err
	}
	qty, err := quantityOf(req, "quantity")
	if err != nil {
		return nil, err
	}
	level, err := h.inv.Pick(ctx, productID, locationID, qty, str(req, "reference"), service.PickMeta{Notes: str(req, "notes")})
	if err != nil {
		return nil, err
	}
	return reply(levelMap(level))
}

func (h *Handler) Adjust(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	productID, locationID, err := h.slotOf(ctx, req)
	if err != nil {
		return nil, err
	}
	// дельта со знаком, ноль отсекает ядро
	delta, err := quantityOf(req, "delta")
	if err != nil {
		return nil, err
	}
	level, err := h.inv.Adjust(ctx, productID, locationID, delta, str(req, "reason"))
	if err != nil {
		return nil, err
	}
	return reply(levelMap(level))
}

func (h *Handler) GetStock(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	productID, locationID, err := h.slotOf(ctx, req)
	if err != nil {
		return nil, err
	}
	level, err := h.inv.GetStock(ctx, productID, locationID)
	if err != nil {
		return nil, err
	}
	return reply(levelMap(level))
}

func (h *Handler) ListStock(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	productID, err := uuidOf(req, "product_id")
	if err != nil {
		return nil, err
	}
	slots, err := h.inv.ListStockByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(slots))
	for _, s := range slots {
		m := levelMap(s.Level)
		m["product_id"] = s.ProductID.String()
		m["location_id"] = s.LocationID.String()
		out = append(out, m)
	}
	return reply(map[string]any{"slots": out})
}

func (h *Handler) ListMovements(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := service.MovementFilter{Reference: str(req, "reference")}
	if has(req, "product_id") {
		id, err := uuidOf(req, "product_id")
		if err != nil {
			return nil, err
		}
		f.ProductID = &id
	}
	if has(req, "location_id") {
		id, err := uuidOf(req, "location_id")
		if err != nil {
			return nil, err
		}
		f.LocationID = &id
	}
	if t := str(req, "type"); t != "" {
		mt := models.MovementType(t)
		f.Type = &mt
	}
	var err error
	if f.Limit, f.Offset, err = page(req); err != nil {
		return nil, err
	}
	list, total, err := h.inv.ListMovements(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(list))
	for _, m := range list {
		out = append(out, movementMap(m))
	}
	return reply(map[string]any{"movements": out, "total": total})
}

func (h *Handler) CreateOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	warehouseID, err := uuidOf(req, "warehouse_id")
	if err != nil {
		return nil, err
	}
	due, err := timeOf(req, "due_date")
	if err != nil {
		return nil, err
	}
	in := service.CreateOrderInput{
		Code:         str(req, "code"),
		WarehouseID:  warehouseID,
		Status:       statusOf(req, "status"),
		CustomerName: str(req, "customer_name"),
		DueDate:      due,
		Notes:        str(req, "notes"),
	}
	if has(req, "priority") {
		if in.Priority, err = intOf(req, "priority"); err != nil {
			return nil, err
		}
	}
	o, err := h.prod.CreateOrder(ctx, in)
	if err != nil {
		return nil, err
	}
	return reply(orderMap(o))
}

func (h *Handler) GetOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := uuidOf(req, "id")
	if err != nil {
		return nil, err
	}
	o, err := h.prod.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return reply(orderMap(o))
}

func (h *Handler) ListOrders(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var f service.OrderListFilter
	if has(req, "status") {
		st := statusOf(req, "status")
		f.Status = &st
	}
	if has(req, "warehouse_id") {
		id, err := uuidOf(req, "warehouse_id")
		if err != nil {
			return nil, err
		}
		f.WarehouseID = &id
	}
	var err error
	if f.Limit, f.Offset, err = page(req); err != nil {
		return nil, err
	}
	list, total, err := h.prod.ListOrders(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(list))
	for i := range list {
		out = append(out, orderMap(&list[i]))
	}
	return reply(map[string]any{"orders": out, "total": total})
}

// UpdateOrder: передаются только меняемые поля; due_date: null снимает срок.
func (h *Handler) UpdateOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := uuidOf(req, "id")
	if err != nil {
		return nil, err
	}
	var patch service.OrderPatch
	if has(req, "status") {
		st := statusOf(req, "status")
		patch.Status = &st
	}
	if has(req, "customer_name") {
		v := str(req, "customer_name")
		patch.CustomerName = &v
	}
	if has(req, "notes") {
		v := str(req, "notes")
		patch.Notes = &v
	}
	if has(req, "priority") {
		p, err := intOf(req, "priority")
		if err != nil {
			return nil, err
		}
		patch.Priority = &p
	}
	if _, present := req.GetFields()["due_date"]; present {
		if !has(req, "due_date") {
			patch.ClearDueDate = true
		} else if patch.DueDate, err = timeOf(req, "due_date"); err != nil {
			return nil, err
		}
	}
	o, err := h.prod.UpdateOrder(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	return reply(orderMap(o))
}

func (h *Handler) DeleteOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := uuidOf(req, "id")
	if err != nil {
		return nil, err
	}
	if err := h.prod.DeleteOrder(ctx, id); err != nil {
		return nil, err
	}
	return &structpb.Struct{}, nil
}

func (h *Handler) AddOrderItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	orderID, err := uuidOf(req, "order_id")
	if err != nil {
		return nil, err
	}
	productID, locationID, err := h.slotOf(ctx, req)
	if err != nil {
		return nil, err
	}
	qty, err := quantityOf(req, "quantity")
	if err != nil {
		return nil, err
	}
	it, err := h.prod.AddItem(ctx, orderID, productID, locationID, qty)
	if err != nil {
		return nil, err
	}
	return reply(itemMap(*it))
}

func (h *Handler) RemoveOrderItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	orderID, err := uuidOf(req, "order_id")
	if err != nil {
		return nil, err
	}
	itemID, err := uuidOf(req, "item_id")
	if err != nil {
		return nil, err
	}
	it, err := h.prod.RemoveItem(ctx, orderID, itemID)
	if err != nil {
		return nil, err
	}
	return reply(itemMap(*it))
}
