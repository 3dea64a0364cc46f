package service

// BankDetails is the EFT account block shown on the payment screen. The
// reference code must accompany any transfer so payments can be matched to
// RSVPs by hand.
type BankDetails struct {
	AccountName string `json:"account_name"`
	Bank        string `json:"bank"`
	AccountNo   string `json:"account_no"`
	Branch      string `json:"branch"`
}

// EFTDetails returns the venue's bank account for transfers.
func EFTDetails() BankDetails {
	return BankDetails{
		AccountName: "Houw Hoek Hotel",
		Bank:        "First National Bank Commercial",
		AccountNo:   "62643591060",
		Branch:      "210554",
	}
}
