package mailer

import (
	"bytes"
	"html/template"
)

var restockTemplate = template.Must(template.New("restock").Parse(`<!DOCTYPE html>
<html>
  <head><meta charset="utf-8"></head>
  <body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
      <h1 style="background-color: #48bb78; color: white; padding: 20px; border-radius: 8px 8px 0 0; margin: 0;">Back in stock!</h1>
      <div style="background-color: #f7fafc; padding: 20px; border-radius: 0 0 8px 8px;">
        <p>Hi!</p>
        <p>The product you were waiting for is available again.</p>
        <p>
          <strong>Variant:</strong> {{.VariantLabel}}<br>
          <strong>Quantity you asked for:</strong> {{.Quantity}} unit{{if gt .Quantity 1}}s{{end}}
        </p>
        <p>Stock is limited and may run out soon.</p>
        <p style="text-align: center;"><a href="{{.ShopURL}}">Shop now</a></p>
        <p style="font-size: 12px; color: #718096;">This is an automated message, please do not reply.</p>
      </div>
    </div>
  </body>
</html>`))

var orderTemplate = template.Must(template.New("order").Parse(`<!DOCTYPE html>
<html>
  <head><meta charset="utf-8"></head>
  <body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
      <h1>{{if .IsPreorder}}Preorder confirmed{{else}}Order confirmed{{end}}</h1>
      <p>Hi {{.CustomerName}}, thanks for your purchase.</p>
      <p><strong>Order:</strong> {{.OrderID}}</p>
      {{if .IsPreorder}}{{with .EstimatedDeliveryDays}}<p>Estimated delivery in {{.}} days.</p>{{end}}{{end}}
      <table style="width: 100%; border-collapse: collapse;">
        <tr><th align="left">Variant</th><th>Qty</th><th align="right">Unit price</th><th align="right">Subtotal</th></tr>
        {{range .Items}}<tr>
          <td>{{.Label}}</td><td align="center">{{.Quantity}}</td>
          <td align="right">${{.UnitPrice.StringFixed 2}}</td><td align="right">${{.Subtotal.StringFixed 2}}</td>
        </tr>{{end}}
      </table>
      <p><strong>Total:</strong> ${{.Total.StringFixed 2}}</p>
      <p><strong>Shipping to:</strong> {{.Address}}, {{.City}} ({{.ZipCode}})</p>
      <p style="font-size: 12px; color: #718096;">This is an automated message, please do not reply.</p>
    </div>
  </body>
</html>`))

type restockData struct {
	VariantLabel string
	Quantity     int
	ShopURL      string
}

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
