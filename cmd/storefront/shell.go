package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/mishramart/internal/domain/order"
	"github.com/xenking/mishramart/internal/domain/product"
	"github.com/xenking/mishramart/internal/storefront"
)

const prompt = "mishramart> "

// orderHistory is the part of the API the shell calls directly.
type orderHistory interface {
	MyOrders(ctx context.Context) ([]storefront.OrderSummary, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// shell is a line-oriented storefront. Every command runs to completion
// before the next line is read, so the session sees one action at a time.
type shell struct {
	in     *bufio.Scanner
	out    io.Writer
	orders orderHistory
	s      *storefront.Session

	// address is reused as the default for the next checkout.
	address order.Address
}

type command struct {
	usage string
	run   func(sh *shell, ctx context.Context, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"help":     {"help", (*shell).help},
		"products": {"products [category] [search words]", (*shell).products},
		"show":     {"show <productId>", (*shell).show},
		"add":      {"add <productId> [qty] [size]", (*shell).add},
		"remove":   {"remove <productId> [size]", (*shell).remove},
		"qty":      {"qty <productId> <quantity>", (*shell).qty},
		"cart":     {"cart", (*shell).cart},
		"coupon":   {"coupon <code> | coupon remove", (*shell).coupon},
		"login":    {"login <userId> <sessionToken>", (*shell).login},
		"logout":   {"logout", (*shell).logout},
		"wish":     {"wish [add|remove <productId>]", (*shell).wish},
		"checkout": {"checkout cod|razorpay", (*shell).checkout},
		"orders":   {"orders", (*shell).listOrders},
		"cancel":   {"cancel <orderId>", (*shell).cancel},
		"reorder":  {"reorder <orderId>", (*shell).reorder},
		"theme":    {"theme [light|dark]", (*shell).theme},
	}
}

func newShell(in *bufio.Scanner, out io.Writer, orders orderHistory) *shell {
	return &shell{in: in, out: out, orders: orders}
}

// attach binds the shell to a session and echoes its notifications and
// checkout progress.
func (sh *shell) attach(s *storefront.Session) {
	sh.s = s
	s.Notifier.Subscribe(func(n storefront.Notice) {
		sh.printf("  [%s] %s\n", n.Kind, n.Message)
	})
	s.Checkout.Subscribe(func(t storefront.Transition) {
		if t.To == storefront.StateAwaitingPayment {
			sh.printf("  checkout: waiting for payment of order %s\n", t.OrderID)
		}
	})
}

// Run reads commands until EOF, quit or ctx is done.
func (sh *shell) Run(ctx context.Context) error {
	sh.printf("MishraMart storefront (%s theme). Type help for commands.\n", sh.s.ThemeMode(ctx))
	if err := sh.s.Catalog.Load(ctx); err != nil {
		sh.printf("error: could not load products: %s\n", message(err))
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		sh.printf("%s", prompt)
		if !sh.in.Scan() {
			sh.printf("\n")
			return sh.in.Err()
		}
		fields := strings.Fields(sh.in.Text())
		if len(fields) == 0 {
			continue
		}
		name, args := strings.ToLower(fields[0]), fields[1:]
		if name == "quit" || name == "exit" {
			return nil
		}
		if err := sh.exec(ctx, name, args); err != nil {
			sh.printf("error: %s\n", message(err))
			sh.checkSession(ctx, err)
		}
	}
}

func (sh *shell) exec(ctx context.Context, name string, args []string) error {
	cmd, ok := commands[name]
	if !ok {
		return errors.Errorf("unknown command %q, type help", name)
	}
	return cmd.run(sh, ctx, args)
}

// checkSession signs out locally once the API rejects the session token.
func (sh *shell) checkSession(ctx context.Context, err error) {
	var apiErr *storefront.APIError
	if !errors.As(err, &apiErr) || !apiErr.Unauthorized() || sh.s.UserID() == "" {
		return
	}
	if err := sh.s.Logout(ctx); err != nil {
		sh.printf("error: %s\n", message(err))
	}
	sh.printf("session expired, type %s to sign in again\n", commands["login"].usage)
}

// message picks the text shown for err.
func message(err error) string {
	var (
		apiErr *storefront.APIError
		vErr   *storefront.ValidationError
		pErr   *storefront.PaymentError
	)
	switch {
	case errors.As(err, &pErr):
		return "payment failed: " + message(pErr.Err)
	case errors.As(err, &apiErr), errors.As(err, &vErr):
		return storefront.UserMessage(err)
	default:
		return err.Error()
	}
}

func (sh *shell) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(sh.out, format, args...)
}

func (sh *shell) help(context.Context, []string) error {
	names := []string{
		"products", "show", "add", "remove", "qty", "cart", "coupon", "checkout",
		"wish", "orders", "cancel", "reorder", "login", "logout", "theme", "help",
	}
	for _, n := range names {
		sh.printf("  %s\n", commands[n].usage)
	}
	sh.printf("  quit\n")
	return nil
}

func (sh *shell) products(ctx context.Context, args []string) error {
	if err := sh.s.Catalog.Load(ctx); err != nil {
		return err
	}
	var f product.Filter
	if len(args) > 0 {
		f.Categories = strings.Split(args[0], ",")
	}
	if len(args) > 1 {
		f.Search = strings.Join(args[1:], " ")
	}
	list := sh.s.Catalog.Products(f)
	if len(list) == 0 {
		sh.printf("no products found\n")
		return nil
	}

	tw := tabwriter.NewWriter(sh.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tPRICE\tMRP\tSIZES")
	for _, p := range list {
		v, err := sh.s.Catalog.View(ctx, p)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s (-%d%%)\t%s\n",
			p.ID, p.Name, money(p.Price), money(v.OriginalPrice), v.DiscountPercent, strings.Join(p.Sizes, "/"))
	}
	return tw.Flush()
}

func (sh *shell) show(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("show")
	}
	p, ok := sh.s.Catalog.Product(args[0])
	if !ok {
		return storefront.ErrUnknownProduct
	}
	v, err := sh.s.Catalog.View(ctx, p)
	if err != nil {
		return err
	}
	sh.printf("%s\n  %s / %s\n  %s  (MRP %s, %d%% off)\n", p.Name, p.Category, p.SubCategory,
		money(p.Price), money(v.OriginalPrice), v.DiscountPercent)
	if len(p.Sizes) > 0 {
		sh.printf("  sizes: %s\n", strings.Join(p.Sizes, ", "))
	}
	if p.Description != "" {
		sh.printf("  %s\n", p.Description)
	}
	if sh.s.Wishlist.Contains(p.ID) {
		sh.printf("  in your wishlist\n")
	}
	return nil
}

func (sh *shell) add(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 3 {
		return usageError("add")
	}
	qty := 1
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			return errors.Errorf("invalid quantity %q", args[1])
		}
		qty = n
	}
	var size string
	if len(args) > 2 {
		size = args[2]
	}
	return sh.s.AddToCart(ctx, args[0], qty, size)
}

func (sh *shell) remove(ctx context.Context, args []string) error {
	switch len(args) {
	case 1:
		return sh.s.Cart.Remove(ctx, args[0])
	case 2:
		return sh.s.Cart.RemoveLine(ctx, args[0], args[1])
	default:
		return usageError("remove")
	}
}

func (sh *shell) qty(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usageError("qty")
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return errors.Errorf("invalid quantity %q", args[1])
	}
	return sh.s.Cart.UpdateQuantity(ctx, args[0], n)
}

func (sh *shell) cart(context.Context, []string) error {
	lines := sh.s.Cart.Lines()
	if len(lines) == 0 {
		sh.printf("your cart is empty\n")
		return nil
	}
	tw := tabwriter.NewWriter(sh.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tSIZE\tQTY\tPRICE\tAMOUNT")
	for _, l := range lines {
		size := l.SizeLabel()
		if size == "" {
			size = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			l.ProductID, l.Name, size, l.Quantity, money(l.Price), money(l.Amount()))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	b := sh.s.Quote()
	sh.printf("  subtotal  %s\n  delivery  %s\n  tax       %s\n", money(b.Subtotal), money(b.DeliveryFee), money(b.Tax))
	if b.CouponCode != "" {
		sh.printf("  coupon    -%s (%s)\n", money(b.Discount), b.CouponCode)
	}
	sh.printf("  total     %s\n", money(b.Total))
	return nil
}

func (sh *shell) coupon(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("coupon")
	}
	if strings.EqualFold(args[0], "remove") {
		sh.s.RemoveCoupon()
		sh.printf("coupon removed\n")
		return nil
	}
	b, err := sh.s.ApplyCoupon(ctx, args[0])
	if err != nil {
		return err
	}
	sh.printf("  you save %s, new total %s\n", money(b.Discount), money(b.Total))
	return nil
}

func (sh *shell) login(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usageError("login")
	}
	if err := sh.s.Login(ctx, args[0], args[1]); err != nil {
		return err
	}
	sh.printf("signed in as %s, %d item(s) in cart\n", args[0], sh.s.Cart.ItemCount())
	return nil
}

func (sh *shell) logout(ctx context.Context, _ []string) error {
	if err := sh.s.Logout(ctx); err != nil {
		return err
	}
	sh.printf("signed out\n")
	return nil
}

func (sh *shell) wish(ctx context.Context, args []string) error {
	if sh.s.UserID() == "" {
		return errors.New("please log in to use the wishlist")
	}
	if len(args) == 0 {
		entries := sh.s.Wishlist.Entries()
		if len(entries) == 0 {
			sh.printf("your wishlist is empty\n")
		}
		for _, e := range entries {
			name := e.ProductID
			if p, ok := sh.s.Catalog.Product(e.ProductID); ok {
				name = p.Name
			} else if e.Product != nil {
				name = e.Product.Name
			}
			sh.printf("  %s  %s\n", e.ProductID, name)
		}
		return nil
	}
	if len(args) != 2 {
		return usageError("wish")
	}
	switch strings.ToLower(args[0]) {
	case "add":
		p, ok := sh.s.Catalog.Product(args[1])
		if !ok {
			return storefront.ErrUnknownProduct
		}
		return sh.s.Wishlist.Add(ctx, p)
	case "remove":
		return sh.s.Wishlist.Remove(ctx, args[1])
	default:
		return usageError("wish")
	}
}

func (sh *shell) checkout(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("checkout")
	}
	if sh.s.UserID() == "" {
		return errors.New("please log in to continue")
	}
	method := order.PaymentMethod(strings.ToLower(args[0]))

	addr, err := sh.readAddress()
	if err != nil {
		return err
	}
	sh.address = addr

	receipt, err := sh.s.Checkout.Submit(ctx, storefront.CheckoutForm{Address: addr, PaymentMethod: method})
	defer sh.s.Checkout.Reset()
	if err != nil {
		return err
	}
	sh.printf("order %s placed, amount %s (%s)\n", receipt.OrderID, money(receipt.Amount), receipt.PaymentMethod)
	return nil
}

func (sh *shell) readAddress() (order.Address, error) {
	a := sh.address
	fields := []struct {
		label string
		v     *string
	}{
		{"first name", &a.FirstName},
		{"last name", &a.LastName},
		{"email", &a.Email},
		{"street", &a.Street},
		{"city", &a.City},
		{"state", &a.State},
		{"zipcode", &a.ZipCode},
		{"country", &a.Country},
		{"phone", &a.Phone},
	}
	for _, f := range fields {
		v, err := sh.ask(f.label, *f.v)
		if err != nil {
			return order.Address{}, err
		}
		*f.v = v
	}
	return a, nil
}

// ask prompts for one value; an empty answer keeps def.
func (sh *shell) ask(label, def string) (string, error) {
	if def != "" {
		sh.printf("  %s [%s]: ", label, def)
	} else {
		sh.printf("  %s: ", label)
	}
	if !sh.in.Scan() {
		if err := sh.in.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	v := strings.TrimSpace(sh.in.Text())
	if v == "" {
		return def, nil
	}
	return v, nil
}

func (sh *shell) listOrders(ctx context.Context, _ []string) error {
	list, err := sh.orders.MyOrders(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		sh.printf("no orders yet\n")
		return nil
	}
	tw := tabwriter.NewWriter(sh.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ORDER\tDATE\tSTATUS\tPAYMENT\tAMOUNT\tTRACKING")
	for _, o := range list {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			o.OrderID, o.CreatedAt.Format("2006-01-02"), o.Status, o.PaymentStatus, money(o.Amount), o.TrackingNumber)
	}
	return tw.Flush()
}

func (sh *shell) cancel(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("cancel")
	}
	if err := sh.orders.CancelOrder(ctx, args[0]); err != nil {
		return err
	}
	sh.printf("order %s cancelled\n", args[0])
	return nil
}

func (sh *shell) reorder(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("reorder")
	}
	return sh.s.Reorder(ctx, args[0])
}

func (sh *shell) theme(ctx context.Context, args []string) error {
	switch len(args) {
	case 0:
		sh.printf("theme: %s\n", sh.s.ThemeMode(ctx))
		return nil
	case 1:
		if err := sh.s.SetThemeMode(ctx, strings.ToLower(args[0])); err != nil {
			return err
		}
		sh.printf("theme set to %s\n", strings.ToLower(args[0]))
		return nil
	default:
		return usageError("theme")
	}
}

func usageError(name string) error {
	return errors.Errorf("usage: %s", commands[name].usage)
}

func money(d decimal.Decimal) string {
	return "₹" + d.StringFixed(2)
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, errors.Errorf("negative amount %s", s)
	}
	return d, nil
}
