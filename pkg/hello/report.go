package hello

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/davecgh/go-spew/spew"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"
)

// WriteAccountInfo writes a human-readable account description to w
// followed by the full structure dump.
func WriteAccountInfo(w io.Writer, account solana.PublicKey, info *rpc.Account) {
	var data []byte
	if info.Data != nil {
		data = info.Data.GetBinary()
	}

	tw := tabwriter.NewWriter(w, 0, 4, 4, '\t', 0)
	_, _ = tw.Write([]byte("Pubkey:\t" + account.String() + "\n"))
	_, _ = tw.Write([]byte(fmt.Sprintf("Lamports:\t%d\n", info.Lamports)))
	_, _ = tw.Write([]byte("Owner:\t" + info.Owner.String() + "\n"))
	_, _ = tw.Write([]byte(fmt.Sprintf("Executable:\t%t\n", info.Executable)))
	_, _ = tw.Write([]byte(fmt.Sprintf("RentEpoch:\t%v\n", info.RentEpoch)))
	_, _ = tw.Write([]byte(fmt.Sprintf("DataLength:\t%d\n", len(data))))
	_, _ = tw.Write([]byte("Data:\t" + base58.Encode(data) + "\n"))
	_ = tw.Flush()

	_, _ = fmt.Fprint(w, "AccountInfo: ")
	spew.Fdump(w, info)
}
