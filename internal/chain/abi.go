package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// registryABI is the MaterialRegistry interface the submitter packs against.
const registryABI = `[
  {"type":"function","name":"registerPassport","stateMutability":"nonpayable","inputs":[
    {"name":"passportId","type":"bytes32"},
    {"name":"dataHash","type":"bytes32"},
    {"name":"metadataUri","type":"string"}],"outputs":[]},
  {"type":"function","name":"registerPassportBatch","stateMutability":"nonpayable","inputs":[
    {"name":"passportIds","type":"bytes32[]"},
    {"name":"dataHashes","type":"bytes32[]"},
    {"name":"metadataUris","type":"string[]"}],"outputs":[]},
  {"type":"function","name":"verifyPassport","stateMutability":"view","inputs":[
    {"name":"passportId","type":"bytes32"},
    {"name":"dataHash","type":"bytes32"}],"outputs":[
    {"name":"valid","type":"bool"}]},
  {"type":"function","name":"getPassport","stateMutability":"view","inputs":[
    {"name":"passportId","type":"bytes32"}],"outputs":[
    {"name":"dataHash","type":"bytes32"},
    {"name":"owner","type":"address"},
    {"name":"status","type":"uint8"}]},
  {"type":"function","name":"getPassportByHash","stateMutability":"view","inputs":[
    {"name":"dataHash","type":"bytes32"}],"outputs":[
    {"name":"passportId","type":"bytes32"}]},
  {"type":"function","name":"updateStatus","stateMutability":"nonpayable","inputs":[
    {"name":"passportId","type":"bytes32"},
    {"name":"status","type":"uint8"}],"outputs":[]},
  {"type":"function","name":"updatePassportHash","stateMutability":"nonpayable","inputs":[
    {"name":"passportId","type":"bytes32"},
    {"name":"newHash","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"transferPassport","stateMutability":"nonpayable","inputs":[
    {"name":"passportId","type":"bytes32"},
    {"name":"newOwner","type":"address"}],"outputs":[]},
  {"type":"function","name":"pause","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"function","name":"unpause","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"event","name":"PassportRegistered","inputs":[
    {"name":"passportId","type":"bytes32","indexed":true},
    {"name":"dataHash","type":"bytes32","indexed":false},
    {"name":"owner","type":"address","indexed":false},
    {"name":"metadataUri","type":"string","indexed":false},
    {"name":"timestamp","type":"uint256","indexed":false}]},
  {"type":"event","name":"PassportStatusChanged","inputs":[
    {"name":"passportId","type":"bytes32","indexed":true},
    {"name":"oldStatus","type":"uint8","indexed":false},
    {"name":"newStatus","type":"uint8","indexed":false},
    {"name":"timestamp","type":"uint256","indexed":false}]},
  {"type":"event","name":"PassportHashUpdated","inputs":[
    {"name":"passportId","type":"bytes32","indexed":true},
    {"name":"oldHash","type":"bytes32","indexed":false},
    {"name":"newHash","type":"bytes32","indexed":false},
    {"name":"timestamp","type":"uint256","indexed":false}]},
  {"type":"event","name":"PassportTransferred","inputs":[
    {"name":"passportId","type":"bytes32","indexed":true},
    {"name":"oldOwner","type":"address","indexed":false},
    {"name":"newOwner","type":"address","indexed":false},
    {"name":"timestamp","type":"uint256","indexed":false}]}
]`

func parseRegistryABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(registryABI))
}
