package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	apperrors "github.com/siu-labs/livegate/internal/platform/errors"
)

// ParseAddress validates an EVM address. All-lowercase and all-uppercase hex
// is accepted as checksum-able; mixed case must carry a valid EIP-55
// checksum.
func ParseAddress(field, value string) (common.Address, error) {
	value = strings.TrimSpace(value)
	if !common.IsHexAddress(value) || !strings.HasPrefix(strings.ToLower(value), "0x") {
		return common.Address{}, apperrors.WithMetadata(
			apperrors.CodeInvalidAddress,
			fmt.Sprintf("invalid %s: not a 20-byte hex address", field),
			map[string]string{"Field": field},
		)
	}
	body := value[2:]
	if body != strings.ToLower(body) && body != strings.ToUpper(body) {
		mixed, err := common.NewMixedcaseAddressFromString(value)
		if err != nil || !mixed.ValidChecksum() {
			return common.Address{}, apperrors.WithMetadata(
				apperrors.CodeInvalidAddress,
				fmt.Sprintf("invalid %s: bad checksum", field),
				map[string]string{"Field": field},
			)
		}
	}
	return common.HexToAddress(value), nil
}
