package notify

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// Business is the static operator information printed on every message.
type Business struct {
	Name     string
	Owner    string
	Location string
	Venue    string
	Phone    string
	Email    string
	Service  string
	Duration string
	Price    string
	Method   string
}

// DefaultBusiness describes the consultation offering.
var DefaultBusiness = Business{
	Name:     "Reginald Kargbo - AI & Software Solutions",
	Owner:    "Reginald Kargbo",
	Location: "Indianapolis, IN, United States",
	Venue:    "Indianapolis, IN (Virtual/Remote)",
	Phone:    "(240) 616-5466",
	Email:    "reginaldkargbo987@gmail.com",
	Service:  "1-Hour Consultation",
	Duration: "1 Hour",
	Price:    "$30.00",
	Method:   "Stripe (Credit/Debit Card)",
}

// Confirmation is what a completed booking tells the operator and the client.
type Confirmation struct {
	ReceiptID   string
	ClientName  string
	ClientEmail string
	ClientPhone string
	FullTime    string
	IssuedAt    time.Time
}

type templateData struct {
	Confirmation
	Business
	Phone string
	Date  string
}

const operatorTemplate = `NEW BOOKING CONFIRMED!

Receipt #: {{.ReceiptID}}

CLIENT DETAILS:
Name: {{.ClientName}}
Email: {{.ClientEmail}}
Phone: {{.Phone}}

BOOKING DETAILS:
Date/Time: {{.FullTime}}
Service: {{.Service}}
Price: {{.Price}}
Payment Status: PAID
Payment Method: {{.Method}}

Location: {{.Venue}}

Please send meeting link to client before appointment.
`

const receiptTemplate = `========================================
           BOOKING RECEIPT
========================================
Receipt #: {{.ReceiptID}}
Date: {{.Date}}

CLIENT INFORMATION:
Name: {{.ClientName}}
Email: {{.ClientEmail}}

SERVICE DETAILS:
Service: {{.Service}}
Date/Time: {{.FullTime}}
Duration: {{.Duration}}

PAYMENT INFORMATION:
Amount: {{.Price}}
Payment Method: {{.Method}}
Status: PAID

BUSINESS INFORMATION:
{{.Business.Name}}
{{.Location}}
Phone: {{.Business.Phone}}
Email: {{.Business.Email}}
`

const clientTemplate = `Dear {{.ClientName}},

Thank you for your booking! Your payment has been received and confirmed.

{{template "receipt" .}}
WHAT HAPPENS NEXT:
1. You'll receive a calendar invite with meeting link
2. Join the meeting at your scheduled time
3. We'll discuss your project needs

POLICY: All bookings are non-refundable. You may reschedule up to 24 hours in advance.

Thank you for your business!

Best regards,
{{.Owner}}
`

const downloadTemplate = `{{template "receipt" .}}
POLICY: All bookings are non-refundable.

Thank you for your business!
========================================
`

// Renderer formats confirmations with text/template. Missing fields are errors.
type Renderer struct {
	business Business
	tmpl     *template.Template
}

// NewRenderer parses the message templates for b. A zero Business uses DefaultBusiness.
func NewRenderer(b Business) *Renderer {
	if b == (Business{}) {
		b = DefaultBusiness
	}
	tmpl := template.New("notify").Option("missingkey=error")
	template.Must(tmpl.New("operator").Parse(operatorTemplate))
	template.Must(tmpl.New("receipt").Parse(receiptTemplate))
	template.Must(tmpl.New("client").Parse(clientTemplate))
	template.Must(tmpl.New("download").Parse(downloadTemplate))
	return &Renderer{business: b, tmpl: tmpl}
}

// Business returns the operator information used by the renderer.
func (r *Renderer) Business() Business {
	return r.business
}

// Operator builds the message sent to the business inbox.
func (r *Renderer) Operator(c Confirmation) (Message, error) {
	body, err := r.execute("operator", c)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      r.business.Email,
		ToName:  r.business.Owner,
		Subject: "NEW BOOKING CONFIRMED: " + c.ClientName,
		Body:    body,
	}, nil
}

// Client builds the receipt message sent to the person who booked.
func (r *Renderer) Client(c Confirmation) (Message, error) {
	body, err := r.execute("client", c)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      c.ClientEmail,
		ToName:  c.ClientName,
		Subject: "Booking Confirmed - Receipt #" + c.ReceiptID,
		Body:    body,
	}, nil
}

// Receipt renders the standalone text receipt offered for download.
func (r *Renderer) Receipt(c Confirmation) (string, error) {
	return r.execute("download", c)
}

// ReceiptFilename is the file name a downloaded receipt is saved under.
func ReceiptFilename(receiptID string) string {
	return "Receipt-" + receiptID + ".txt"
}

func (r *Renderer) execute(name string, c Confirmation) (string, error) {
	issued := c.IssuedAt
	if issued.IsZero() {
		issued = time.Now()
	}
	phone := strings.TrimSpace(c.ClientPhone)
	if phone == "" {
		phone = "Not provided"
	}
	data := templateData{
		Confirmation: c,
		Business:     r.business,
		Phone:        phone,
		Date:         issued.Format("1/2/2006"),
	}
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("notify: render %s: %w", name, err)
	}
	return buf.String(), nil
}
