package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shivbardolabs/ShipOS-sub002/internal/model"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		explicit model.Channel
		customer model.Customer
		want     model.Channel
	}{
		{
			name:     "explicit channel wins over preferences",
			explicit: model.ChannelSMS,
			customer: model.Customer{
				NotifyEmail: true,
				Email:       "a@example.com",
				NotifySMS:   true,
				Phone:       "+15551234567",
			},
			want: model.ChannelSMS,
		},
		{
			name: "both opt-ins with both contacts resolves to both",
			customer: model.Customer{
				NotifyEmail: true,
				Email:       "a@example.com",
				NotifySMS:   true,
				Phone:       "+15551234567",
			},
			want: model.ChannelBoth,
		},
		{
			name: "sms only never resolves to both or email",
			customer: model.Customer{
				NotifyEmail: false,
				NotifySMS:   true,
				Phone:       "+15551234567",
			},
			want: model.ChannelSMS,
		},
		{
			name: "email opt-in only",
			customer: model.Customer{
				NotifyEmail: true,
				Email:       "a@example.com",
			},
			want: model.ChannelEmail,
		},
		{
			name:     "no opt-ins falls back to email",
			customer: model.Customer{Email: "a@example.com"},
			want:     model.ChannelEmail,
		},
		{
			name: "sms opt-in without phone falls back to email",
			customer: model.Customer{
				NotifySMS: true,
			},
			want: model.ChannelEmail,
		},
		{
			name: "email opt-in without address is not viable, sms wins",
			customer: model.Customer{
				NotifyEmail: true,
				NotifySMS:   true,
				Phone:       "+15551234567",
			},
			want: model.ChannelSMS,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.explicit, tt.customer))
		})
	}
}
