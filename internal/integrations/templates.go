package integrations

import (
	"strings"

	"bizops-platform/internal/settings"
)

// Template is a built-in WhatsApp message with {{field}} placeholders.
type Template struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Fields      []string          `json:"fields"`
	Body        string            `json:"-"`
	Defaults    map[string]string `json:"-"`
}

var builtinTemplates = []Template{
	{
		ID:          "appointment_reminder",
		Name:        "Appointment Reminder",
		Description: "Send appointment reminders to customers",
		Fields:      []string{"customer_name", "appointment_date", "appointment_time", "store_name"},
		Body: `*{{store_name}}* - Appointment Reminder

Hello {{customer_name}}!

This is a friendly reminder about your consultation:

*Date:* {{appointment_date}}
*Time:* {{appointment_time}}
*Location:* {{store_name}}

If you need to reschedule, please let us know.

Thank you!`,
	},
	{
		ID:          "order_ready",
		Name:        "Order Ready for Pickup",
		Description: "Notify customers when their order is ready",
		Fields:      []string{"customer_name", "order_number", "product_name", "store_name"},
		Body: `*Great News {{customer_name}}!*

Your order is ready for pickup.

*Order #:* {{order_number}}
*Item:* {{product_name}}
*Pickup Location:* {{store_name}}

Please bring a valid ID when collecting your order.

Thank you for choosing us!`,
	},
	{
		ID:          "payment_reminder",
		Name:        "Payment Reminder",
		Description: "Send payment due reminders",
		Fields:      []string{"customer_name", "amount", "due_date", "order_number"},
		Body: `*Payment Reminder*

Hello {{customer_name}},

This is a gentle reminder for your pending payment:

*Order #:* {{order_number}}
*Amount Due:* ₹{{amount}}
*Due Date:* {{due_date}}

You can pay by cash at the store, online transfer or UPI.

Thank you!`,
	},
	{
		ID:          "new_collection",
		Name:        "New Collection Launch",
		Description: "Promote new collections",
		Fields:      []string{"customer_name", "collection_name", "discount", "store_name"},
		Body: `*Exciting News {{customer_name}}!*

We've launched our new *{{collection_name}}* collection!

*Special Launch Offer:* {{discount}}% OFF on all items
Limited time only!

Visit {{store_name}} to explore the new designs.`,
		Defaults: map[string]string{
			"customer_name":   "Valued Customer",
			"collection_name": "New Collection",
			"discount":        "10",
			"store_name":      "Our Store",
		},
	},
	{
		ID:          "follow_up",
		Name:        "Follow-up Message",
		Description: "Follow up with prospects",
		Fields:      []string{"customer_name", "product_interest", "salesperson_name"},
		Body: `Hello {{customer_name}}!

This is {{salesperson_name}} from our store. I wanted to follow up on your interest in *{{product_interest}}*.

Feel free to reach out with any questions about products, pricing, customization or visit scheduling.

Best regards,
{{salesperson_name}}`,
		Defaults: map[string]string{
			"customer_name":    "Valued Customer",
			"product_interest": "our products",
			"salesperson_name": "Our team",
		},
	},
}

// Templates lists the built-in message templates.
func Templates() []Template {
	return append([]Template(nil), builtinTemplates...)
}

func findTemplate(id string) (Template, bool) {
	for _, t := range builtinTemplates {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

// Render fills the template from data, falling back to the template's
// defaults for blank fields.
func (t Template) Render(data map[string]string) string {
	vars := make(map[string]string, len(t.Fields))
	for k, v := range t.Defaults {
		vars[k] = v
	}
	for k, v := range data {
		if strings.TrimSpace(v) != "" {
			vars[k] = v
		}
	}
	return settings.Interpolate(t.Body, vars)
}

// bulkTemplates are the templates bulk sends may render per recipient.
var bulkTemplates = map[string]bool{"new_collection": true, "follow_up": true}
