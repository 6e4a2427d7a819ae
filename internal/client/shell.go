// Package client is the Staffonic terminal client: an interactive shell over
// the same views and permission table as the portal.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/staffonic/internal/access"
	"github.com/atinyakov/staffonic/internal/identity"
	"github.com/atinyakov/staffonic/internal/models"
	"github.com/atinyakov/staffonic/internal/session"
	"github.com/atinyakov/staffonic/internal/views"
)

// Store is the part of the remote store the shell uses.
type Store interface {
	views.WorkStore
	views.PaymentLister
	views.EmployeeStore
	views.DetailsStore
	views.ProgressStore
	views.StaffStore
	views.PayrollStore
	views.UserCreator
}

// Config wires a Shell.
type Config struct {
	Auth     *identity.Auth
	Resolver *session.Resolver
	Store    Store
	Access   *access.Table
	File     *SessionFile
	Prompt   *Prompter
	Out      io.Writer
	Log      *zap.Logger
}

type command struct {
	route   string
	action  string
	usage   string
	minArgs int
	run     func(ctx context.Context, args []string) error
}

// Shell dispatches commands to the views, gated by the permission table.
type Shell struct {
	auth     *identity.Auth
	resolver *session.Resolver
	store    Store
	table    *access.Table
	file     *SessionFile
	prompt   *Prompter
	out      io.Writer
	log      *zap.Logger

	commands    map[string]command
	unsubscribe func()
}

// NewShell returns a shell and subscribes its resolver to cfg.Auth.
// Restore the session before calling it so the first state is not signed out.
func NewShell(cfg Config) *Shell {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	s := &Shell{
		auth:     cfg.Auth,
		resolver: cfg.Resolver,
		store:    cfg.Store,
		table:    cfg.Access,
		file:     cfg.File,
		prompt:   cfg.Prompt,
		out:      cfg.Out,
		log:      cfg.Log,
	}
	s.commands = map[string]command{
		"login":     {usage: "login", run: s.login},
		"register":  {usage: "register", run: s.register},
		"whoami":    {usage: "whoami", run: s.whoami},
		"logout":    {usage: "logout", run: s.logout},
		"worksheet": {route: "/worksheet", usage: "worksheet", run: s.worksheet},
		"add":       {route: "/worksheet", action: "work.write", usage: "add <task> <hours> <yyyy-mm-dd>", minArgs: 3, run: s.add},
		"edit":      {route: "/worksheet", action: "work.write", usage: "edit <id> [task=..] [hours=..] [date=..]", minArgs: 2, run: s.edit},
		"delete":    {route: "/worksheet", action: "work.write", usage: "delete <id>", minArgs: 1, run: s.delete},
		"payments":  {route: "/paymentHistory", usage: "payments [year-desc|year-asc|amount-desc|amount-asc] [page]", run: s.payments},
		"employees": {route: "/employeeList", usage: "employees", run: s.employees},
		"verify":    {route: "/employeeList", action: "user.verify", usage: "verify <id>", minArgs: 1, run: s.verify},
		"pay":       {route: "/employeeList", action: "payment.create", usage: "pay <id> <month> <year>", minArgs: 3, run: s.pay},
		"details":   {route: "/employees/{email}", usage: "details <email>", minArgs: 1, run: s.details},
		"progress":  {route: "/progress", usage: "progress [email|all] [month]", run: s.progress},
		"staff":     {route: "/allEmployeeList", usage: "staff", run: s.staff},
		"fire":      {route: "/allEmployeeList", action: "user.fire", usage: "fire <id>", minArgs: 1, run: s.adminOp("fire")},
		"promote":   {route: "/allEmployeeList", action: "user.promote", usage: "promote <id>", minArgs: 1, run: s.adminOp("makeHR")},
		"role":      {route: "/allEmployeeList", action: "user.promote", usage: "role <id>", minArgs: 1, run: s.adminOp("toggleRole")},
		"salary":    {route: "/allEmployeeList", action: "user.salary", usage: "salary <id> <amount>", minArgs: 2, run: s.adminOp("salary")},
		"payroll":   {route: "/payroll", usage: "payroll", run: s.payroll},
		"approve":   {route: "/payroll", action: "payment.approve", usage: "approve <id>", minArgs: 1, run: s.approve},
		"profile":   {route: "/profile", usage: "profile [name] [photo-url]", run: s.profile},
	}
	s.unsubscribe = cfg.Auth.OnAuthStateChanged(s.onAuthChange)
	return s
}

func (s *Shell) onAuthChange(id *models.Identity) {
	s.resolver.OnIdentityChange(id)
	if id == nil || s.file == nil {
		return
	}
	if err := s.file.Save(id.Email, s.auth.RefreshToken()); err != nil {
		s.log.Warn("failed to remember session", zap.Error(err))
	}
}

// Close stops the role refresh.
func (s *Shell) Close() {
	s.unsubscribe()
	s.resolver.Close()
}

// Run reads commands until exit or end of input.
func (s *Shell) Run(ctx context.Context) error {
	s.settle(ctx)
	for {
		line, err := s.prompt.Ask(s.label())
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(s.out)
			return nil
		}
		if err != nil {
			return err
		}
		if s.Exec(ctx, line) {
			return nil
		}
	}
}

// settle waits for the store's answer so the first prompt shows the real role.
func (s *Shell) settle(ctx context.Context) {
	if !s.resolver.Current().SignedIn() {
		return
	}
	if err := s.resolver.Refresh(ctx); err != nil {
		s.log.Debug("role not resolved yet", zap.Error(err))
	}
}

func (s *Shell) label() string {
	st := s.resolver.Current()
	if !st.SignedIn() {
		return "staffonic> "
	}
	name := st.Identity.DisplayName
	if name == "" {
		name = st.Identity.Email
	}
	return fmt.Sprintf("staffonic (%s, %s)> ", name, st.Role())
}

// Exec runs one command line. It reports whether the shell should exit.
func (s *Shell) Exec(ctx context.Context, line string) bool {
	args := strings.Fields(line)
	if len(args) == 0 {
		return false
	}
	name, args := args[0], args[1:]

	switch name {
	case "exit", "quit":
		fmt.Fprintln(s.out, "Bye")
		return true
	case "help":
		s.help()
		return false
	}

	cmd, ok := s.commands[name]
	if !ok {
		fmt.Fprintln(s.out, "Unknown command. Type 'help' for a list of commands.")
		return false
	}
	if !s.allowed(cmd) {
		return false
	}
	if len(args) < cmd.minArgs {
		fmt.Fprintln(s.out, "Usage:", cmd.usage)
		return false
	}
	if err := cmd.run(ctx, args); err != nil {
		fmt.Fprintln(s.out, "Error:", err)
	}
	return false
}

func (s *Shell) allowed(cmd command) bool {
	if cmd.route == "" {
		return true
	}
	st := s.resolver.Current()
	p := access.Principal{Loading: st.Resolving(), SignedIn: st.SignedIn(), Role: st.Role()}
	switch s.table.Decide(cmd.route, p) {
	case access.Wait:
		fmt.Fprintln(s.out, "Still loading, try again.")
		return false
	case access.Login:
		fmt.Fprintln(s.out, "Please log in first.")
		return false
	case access.Deny:
		fmt.Fprintf(s.out, "Not available for role %q.\n", st.Role())
		return false
	}
	if cmd.action != "" && !s.table.Can(st.Role(), cmd.action) {
		fmt.Fprintf(s.out, "Role %q may not do that.\n", st.Role())
		return false
	}
	return true
}

func (s *Shell) help() {
	st := s.resolver.Current()
	p := access.Principal{SignedIn: st.SignedIn(), Role: st.Role()}

	var lines []string
	for _, cmd := range s.commands {
		if cmd.route != "" && s.table.Decide(cmd.route, p) != access.Allow {
			continue
		}
		if cmd.action != "" && !s.table.Can(st.Role(), cmd.action) {
			continue
		}
		lines = append(lines, cmd.usage)
	}
	sort.Strings(lines)
	fmt.Fprintln(s.out, "Available commands:")
	for _, l := range lines {
		fmt.Fprintln(s.out, "  "+l)
	}
	fmt.Fprintln(s.out, "  exit")
}

func (s *Shell) email() string {
	return s.resolver.Current().Identity.Email
}

func (s *Shell) tabular() *tabwriter.Writer {
	return tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
}

// Login prompts for credentials and signs in.
func (s *Shell) login(ctx context.Context, _ []string) error {
	email, err := s.prompt.Ask("Email: ")
	if err != nil {
		return err
	}
	password, err := s.prompt.Password("Password: ")
	if err != nil {
		return err
	}
	if _, err := views.NewAccounts(s.auth, s.store).Login(ctx, email, password); err != nil {
		return err
	}
	s.settle(ctx)
	fmt.Fprintln(s.out, "Signed in as", email)
	return nil
}

// Register prompts for the sign-up form and creates the account.
func (s *Shell) register(ctx context.Context, _ []string) error {
	var reg views.Registration
	fields := []struct {
		label string
		dst   *string
	}{
		{"Name: ", &reg.Name},
		{"Email: ", &reg.Email},
		{"Photo URL: ", &reg.PhotoURL},
		{"Bank account: ", &reg.BankAccountNo},
	}
	for _, f := range fields {
		v, err := s.prompt.Ask(f.label)
		if err != nil {
			return err
		}
		*f.dst = v
	}

	password, err := s.prompt.Password("Password: ")
	if err != nil {
		return err
	}
	reg.Password = password

	role, err := s.prompt.Ask("Role (employee/hr): ")
	if err != nil {
		return err
	}
	reg.Role = models.Role(strings.ToLower(role))

	designation, err := s.prompt.Ask("Designation (sales_assistant/social_media_executive/digital_marketer): ")
	if err != nil {
		return err
	}
	reg.Designation = models.Designation(designation)

	salary, err := s.prompt.Ask("Salary: ")
	if err != nil {
		return err
	}
	if salary != "" {
		f, err := strconv.ParseFloat(salary, 64)
		if err != nil {
			return fmt.Errorf("salary: %w", err)
		}
		reg.Salary = models.Amount(f)
	}

	if _, err := views.NewAccounts(s.auth, s.store).Register(ctx, reg); err != nil {
		return err
	}
	s.settle(ctx)
	fmt.Fprintln(s.out, "Registered", reg.Email)
	return nil
}

func (s *Shell) logout(_ context.Context, _ []string) error {
	s.auth.SignOut()
	if s.file != nil {
		if err := s.file.Clear(); err != nil {
			return err
		}
	}
	fmt.Fprintln(s.out, "Signed out")
	return nil
}

func (s *Shell) whoami(_ context.Context, _ []string) error {
	st := s.resolver.Current()
	switch {
	case st.Resolving():
		fmt.Fprintln(s.out, "Still loading.")
		return nil
	case !st.SignedIn():
		fmt.Fprintln(s.out, "Not signed in.")
		return nil
	}

	u := st.User
	fmt.Fprintf(s.out, "%s <%s>\n", st.Identity.DisplayName, st.Identity.Email)
	fmt.Fprintf(s.out, "role: %s  verified: %t  fired: %t  confirmed: %t\n", u.Role, u.IsVerified, u.Fired, st.Authoritative)
	fmt.Fprintln(s.out, "pages:", strings.Join(s.table.Visible(u.Role), " "))
	return nil
}

func (s *Shell) printRecords(recs []models.WorkRecord) {
	tw := s.tabular()
	fmt.Fprintln(tw, "ID\tEMAIL\tTASK\tHOURS\tDATE")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%g\t%s\n", r.ID, r.Email, r.Task, float64(r.Hours), r.Date)
	}
	_ = tw.Flush()
}

func (s *Shell) printUsers(users []models.User) {
	tw := s.tabular()
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE\tSALARY\tVERIFIED\tFIRED")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%g\t%t\t%t\n", u.ID, u.Name, u.Email, u.Role, float64(u.Salary), u.IsVerified, u.Fired)
	}
	_ = tw.Flush()
}

func (s *Shell) printPayments(ps []models.Payment) {
	tw := s.tabular()
	fmt.Fprintln(tw, "ID\tEMAIL\tPERIOD\tSALARY\tSTATUS")
	for _, p := range ps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%g\t%s\n", p.ID, p.Email, p.MonthYear(), float64(p.Salary), p.Status)
	}
	_ = tw.Flush()
}

func (s *Shell) loadWorksheet(ctx context.Context) (*views.Worksheet, error) {
	ws := views.NewWorksheet(s.store)
	if err := ws.Load(ctx, s.email()); err != nil {
		return nil, err
	}
	return ws, nil
}

func (s *Shell) worksheet(ctx context.Context, _ []string) error {
	ws, err := s.loadWorksheet(ctx)
	if err != nil {
		return err
	}
	s.printRecords(ws.Records())
	return nil
}

func parseAmount(raw string) (models.Amount, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", views.ErrInvalidInput, raw)
	}
	return models.Amount(f), nil
}

func (s *Shell) add(ctx context.Context, args []string) error {
	hours, err := parseAmount(args[1])
	if err != nil {
		return err
	}
	ws, err := s.loadWorksheet(ctx)
	if err != nil {
		return err
	}
	rec, err := ws.Add(ctx, models.Task(args[0]), hours, args[2])
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, "Added", rec.ID)
	return nil
}

func (s *Shell) edit(ctx context.Context, args []string) error {
	var patch views.WorkPatch
	for _, kv := range args[1:] {
		key, val, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("%w: expected key=value, got %q", views.ErrInvalidInput, kv)
		}
		switch key {
		case "task":
			t := models.Task(val)
			patch.Task = &t
		case "hours":
			h, err := parseAmount(val)
			if err != nil {
				return err
			}
			patch.Hours = &h
		case "date":
			d := val
			patch.Date = &d
		default:
			return fmt.Errorf("%w: unknown field %q", views.ErrInvalidInput, key)
		}
	}

	ws, err := s.loadWorksheet(ctx)
	if err != nil {
		return err
	}
	rec, err := ws.Edit(ctx, args[0], patch)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, "Updated", rec.ID)
	return nil
}

func (s *Shell) delete(ctx context.Context, args []string) error {
	ws, err := s.loadWorksheet(ctx)
	if err != nil {
		return err
	}
	if err := ws.Delete(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "Deleted", args[0])
	return nil
}

func (s *Shell) payments(ctx context.Context, args []string) error {
	order := views.YearDesc
	page := 1
	if len(args) > 0 {
		o, err := views.ParseSortOrder(args[0])
		if err != nil {
			return err
		}
		order = o
	}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("%w: page %q", views.ErrInvalidInput, args[1])
		}
		page = n
	}

	h := views.NewPaymentHistory(s.store)
	if err := h.Load(ctx, s.email()); err != nil {
		return err
	}
	if err := h.Sort(order); err != nil {
		return err
	}
	rows, pages := h.Page(page)
	s.printPayments(rows)
	fmt.Fprintf(s.out, "page %d of %d, total paid %g\n", min(max(page, 1), max(pages, 1)), pages, float64(h.TotalPaid()))
	return nil
}

func (s *Shell) employees(ctx context.Context, _ []string) error {
	l := views.NewEmployeeList(s.store)
	if err := l.Load(ctx); err != nil {
		return err
	}
	s.printUsers(l.Users())
	verified, unverified := l.Counts()
	fmt.Fprintf(s.out, "verified %d, unverified %d\n", verified, unverified)
	return nil
}

func (s *Shell) verify(ctx context.Context, args []string) error {
	l := views.NewEmployeeList(s.store)
	if err := l.Load(ctx); err != nil {
		return err
	}
	u, err := l.ToggleVerify(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s verified: %t\n", u.Email, u.IsVerified)
	return nil
}

func (s *Shell) pay(ctx context.Context, args []string) error {
	year, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("%w: year %q", views.ErrInvalidInput, args[2])
	}
	l := views.NewEmployeeList(s.store)
	if err := l.Load(ctx); err != nil {
		return err
	}
	p, err := l.Pay(ctx, args[0], args[1], year)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Requested %g for %s (%s)\n", float64(p.Salary), p.Email, p.MonthYear())
	return nil
}

func (s *Shell) details(ctx context.Context, args []string) error {
	d, err := views.LoadEmployeeDetails(ctx, s.store, args[0])
	if err != nil {
		return err
	}
	s.printUsers([]models.User{d.User})
	fmt.Fprintln(s.out, "Paid salaries:")
	for _, p := range d.Series {
		fmt.Fprintf(s.out, "  %-16s %g\n", p.MonthYear, float64(p.Salary))
	}
	return nil
}

func (s *Shell) progress(ctx context.Context, args []string) error {
	email, month := "", 0
	if len(args) > 0 && args[0] != "all" {
		email = args[0]
	}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("%w: month %q", views.ErrInvalidInput, args[1])
		}
		month = n
	}

	p := views.NewProgress(s.store)
	if err := p.Load(ctx); err != nil {
		return err
	}
	rep, err := p.Filter(email, month)
	if err != nil {
		return err
	}
	s.printRecords(rep.Records)
	fmt.Fprintf(s.out, "total hours %g\n", float64(rep.TotalHours))
	return nil
}

func (s *Shell) staff(ctx context.Context, _ []string) error {
	a := views.NewAdminPanel(s.store)
	if err := a.Load(ctx); err != nil {
		return err
	}
	s.printUsers(a.Users())
	return nil
}

func (s *Shell) adminOp(op string) func(ctx context.Context, args []string) error {
	return func(ctx context.Context, args []string) error {
		var salary models.Amount
		if op == "salary" {
			v, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			salary = v
		}

		a := views.NewAdminPanel(s.store)
		if err := a.Load(ctx); err != nil {
			return err
		}

		var (
			u   models.User
			err error
		)
		switch op {
		case "fire":
			u, err = a.Fire(ctx, args[0])
		case "makeHR":
			u, err = a.MakeHR(ctx, args[0])
		case "toggleRole":
			u, err = a.ToggleRole(ctx, args[0])
		case "salary":
			u, err = a.SetSalary(ctx, args[0], salary)
		}
		if err != nil {
			return err
		}
		if strings.EqualFold(u.Email, s.email()) {
			_ = s.resolver.Refresh(ctx)
		}
		s.printUsers([]models.User{u})
		return nil
	}
}

func (s *Shell) payroll(ctx context.Context, _ []string) error {
	p := views.NewPayroll(s.store)
	if err := p.Load(ctx); err != nil {
		return err
	}
	s.printPayments(p.Payments())
	return nil
}

func (s *Shell) approve(ctx context.Context, args []string) error {
	p := views.NewPayroll(s.store)
	if err := p.Load(ctx); err != nil {
		return err
	}
	pay, err := p.Approve(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Paid %s on %s\n", pay.ID, pay.PaymentDate.Format(time.DateOnly))
	return nil
}

func (s *Shell) profile(ctx context.Context, args []string) error {
	var (
		p   views.Profile
		err error
	)
	if len(args) == 0 {
		p, err = views.CurrentProfile(s.resolver)
	} else {
		photo := ""
		if len(args) > 1 {
			photo = args[1]
		}
		p, err = views.UpdateProfile(ctx, s.auth, s.resolver, args[0], photo)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "name:  %s\nemail: %s\nphoto: %s\n", p.DisplayName, p.Email, p.PhotoURL)
	if p.User != nil {
		fmt.Fprintf(s.out, "role:  %s\n", p.User.Role)
	}
	return nil
}
