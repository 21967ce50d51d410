package fund

import (
	"github.com/gagliardetto/solana-go"
)

// MaxWithdrawalRequestsPerUser bounds outstanding requests per user account.
const MaxWithdrawalRequestsPerUser = 8

// WithdrawalRequest is one user's pending exit, locked into a batch.
type WithdrawalRequest struct {
	BatchID            uint64
	RequestID          uint64
	ReceiptTokenAmount uint64
	CreatedAt          int64
	// TargetMint selects the payout asset; zero means SOL.
	TargetMint solana.PublicKey
}

// UserAccount is the per-(fund, user) ledger: receipt tokens held in custody
// for pending withdrawals plus the outstanding requests. Created on first
// deposit and reused for the lifetime of the fund.
type UserAccount struct {
	User solana.PublicKey

	// ReceiptTokenAmount is the user's liquid receipt token balance tracked
	// by the fund; LockedReceiptTokenAmount backs outstanding requests.
	ReceiptTokenAmount       uint64
	LockedReceiptTokenAmount uint64

	Requests []WithdrawalRequest
}

func NewUserAccount(user solana.PublicKey) *UserAccount {
	return &UserAccount{User: user}
}

func (u *UserAccount) requestByID(id uint64) (int, *WithdrawalRequest) {
	for i := range u.Requests {
		if u.Requests[i].RequestID == id {
			return i, &u.Requests[i]
		}
	}
	return -1, nil
}

func (u *UserAccount) removeRequest(index int) {
	u.Requests = append(u.Requests[:index], u.Requests[index+1:]...)
}
